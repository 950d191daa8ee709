package models

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Plan{},
		&Permission{},
		&Role{},
		&User{},
		&UserRole{},
		&UserPreferences{},
		&Persona{},
	}
}
