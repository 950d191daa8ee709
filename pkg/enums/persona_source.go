package enums

// PersonaSource records how a persona row was produced.
type PersonaSource string

const (
	PersonaSourceEnriched PersonaSource = "enriched"
	PersonaSourceLegacy   PersonaSource = "legacy"
	PersonaSourceMigrated PersonaSource = "migrated"
	PersonaSourceEdited   PersonaSource = "edited"
)

func (p PersonaSource) String() string {
	return string(p)
}

func (p PersonaSource) IsValid() bool {
	switch p {
	case PersonaSourceEnriched, PersonaSourceLegacy, PersonaSourceMigrated, PersonaSourceEdited:
		return true
	default:
		return false
	}
}
