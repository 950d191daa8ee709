package users

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
)

// Repository exposes user projection persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureDefaults(ctx context.Context) error
	Upsert(ctx context.Context, identity Identity, overwrite bool) error
	EnsureRole(ctx context.Context, userID, roleID string) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// EnsureDefaults makes sure the default plan and role rows exist. Seed
// migrations normally create them; this keeps fresh databases usable.
func (r *repositoryImpl) EnsureDefaults(ctx context.Context) error {
	plan := models.Plan{
		ID:                       enums.PlanFree,
		Name:                     "Free",
		Status:                   enums.PlanStatusActive,
		IsDefault:                true,
		MonthlyGenerationLimit:   10,
		MaxPersonasPerGeneration: 3,
		PriceAmount:              decimal.Zero,
		CurrencyCode:             "USD",
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&plan).Error; err != nil {
		return err
	}
	role := models.Role{ID: enums.RoleFree, Name: "Free"}
	return r.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error
}

// Upsert inserts the projection keyed by the external id. With overwrite the
// identity columns are refreshed; the plan is never touched on conflict.
func (r *repositoryImpl) Upsert(ctx context.Context, identity Identity, overwrite bool) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}
	if overwrite {
		onConflict.DoNothing = false
		onConflict.DoUpdates = clause.AssignmentColumns([]string{"email", "display_name", "profile_image_url", "updated_at"})
	}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(onConflict).
		Create(identity.toModel(enums.PlanFree)).Error
}

// EnsureRole attaches roleID when the user has no role at all.
func (r *repositoryImpl) EnsureRole(ctx context.Context, userID, roleID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UserRole{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("Roles.Permissions").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes the user with every row it owns. Callers run it in a transaction.
func (r *repositoryImpl) Delete(ctx context.Context, id string) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ?", id).Delete(&models.Persona{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("user_id = ?", id).Delete(&models.UserPreferences{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
		return false, err
	}
	result := db.Where("id = ?", id).Delete(&models.User{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
