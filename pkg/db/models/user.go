package models

import "time"

// User is the local projection of a Stack Auth identity. ID is the external
// auth id, not a generated key.
type User struct {
	ID              string    `gorm:"column:id;type:text;primaryKey"`
	Email           *string   `gorm:"column:email;type:text;index"`
	DisplayName     *string   `gorm:"column:display_name;type:text"`
	ProfileImageURL *string   `gorm:"column:profile_image_url;type:text"`
	PlanID          string    `gorm:"column:plan_id;type:text;not null;index"`
	Plan            Plan      `gorm:"foreignKey:PlanID;references:ID"`
	Roles           []Role    `gorm:"many2many:user_roles;joinForeignKey:UserID;joinReferences:RoleID"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
