package models

import "time"

type Role struct {
	ID          string       `gorm:"column:id;type:text;primaryKey"`
	Name        string       `gorm:"column:name;not null"`
	Permissions []Permission `gorm:"many2many:role_permissions;joinForeignKey:RoleID;joinReferences:PermissionID"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime"`
}

type Permission struct {
	ID          string    `gorm:"column:id;type:text;primaryKey"`
	Description string    `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// UserRole is the join row between users and roles.
type UserRole struct {
	UserID    string    `gorm:"column:user_id;type:text;primaryKey"`
	RoleID    string    `gorm:"column:role_id;type:text;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }
