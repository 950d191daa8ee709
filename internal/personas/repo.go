package personas

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/pagination"
)

// upsertColumns are refreshed when a (user_id, name) row already exists.
var upsertColumns = []string{
	"age", "occupation", "location", "bio", "quote",
	"demographics", "psychographics", "cultural_data",
	"pain_points", "goals", "marketing_insights",
	"quality_score", "source", "updated_at",
}

// Repository exposes persona persistence scoped by owner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, persona *models.Persona) (*models.Persona, error)
	List(ctx context.Context, params listParams) ([]models.Persona, *pagination.Cursor, error)
	FindOwned(ctx context.Context, userID string, id uuid.UUID) (*models.Persona, error)
	Save(ctx context.Context, persona *models.Persona) error
	DeleteOwned(ctx context.Context, userID string, id uuid.UUID) (bool, error)
}

type listParams struct {
	UserID string
	Limit  int
	Cursor *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// Upsert inserts or updates in place by (user_id, name) and returns the stored row.
func (r *repositoryImpl) Upsert(ctx context.Context, persona *models.Persona) (*models.Persona, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(persona).Error
	if err != nil {
		return nil, err
	}

	var stored models.Persona
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", persona.UserID, persona.Name).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]models.Persona, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Persona{}).Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Persona
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) > normalized {
		next := rows[normalized-1]
		return rows[:normalized], &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

// FindOwned returns gorm.ErrRecordNotFound when the persona is missing or
// belongs to someone else.
func (r *repositoryImpl) FindOwned(ctx context.Context, userID string, id uuid.UUID) (*models.Persona, error) {
	var persona models.Persona
	if err := r.db.WithContext(ctx).First(&persona, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &persona, nil
}

func (r *repositoryImpl) Save(ctx context.Context, persona *models.Persona) error {
	if persona.ID == uuid.Nil {
		return errors.New("persona id required")
	}
	return r.db.WithContext(ctx).Save(persona).Error
}

func (r *repositoryImpl) DeleteOwned(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Persona{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
