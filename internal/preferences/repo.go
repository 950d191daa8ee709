package preferences

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
)

// Repository persists per-user preferences.
type Repository interface {
	Find(ctx context.Context, userID string) (*models.UserPreferences, error)
	Upsert(ctx context.Context, prefs *models.UserPreferences, columns []string) error
	ReserveGeneration(ctx context.Context, userID, period string, limit int) (bool, error)
	ReleaseGeneration(ctx context.Context, userID, period string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Find returns gorm.ErrRecordNotFound until the first write.
func (r *repositoryImpl) Find(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var prefs models.UserPreferences
	if err := r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert creates the row or updates only the listed columns.
func (r *repositoryImpl) Upsert(ctx context.Context, prefs *models.UserPreferences, columns []string) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: len(columns) == 0,
	}
	if len(columns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(append(columns, "updated_at"))
	}
	return r.db.WithContext(ctx).Clauses(onConflict).Create(prefs).Error
}

// ReserveGeneration bumps the counter for period, restarting at one when the
// stored period is older. With limit > 0 the bump only happens while the
// counter is below limit; false means the quota is used up.
func (r *repositoryImpl) ReserveGeneration(ctx context.Context, userID, period string, limit int) (bool, error) {
	row := defaults(userID)
	row.GenerationCount = 1
	row.GenerationPeriod = period

	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"generation_count": gorm.Expr(
				"CASE WHEN user_preferences.generation_period = ? THEN user_preferences.generation_count + 1 ELSE 1 END",
				period,
			),
			"generation_period": period,
			"updated_at":        time.Now().UTC(),
		}),
	}
	if limit > 0 {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL:  "user_preferences.generation_period <> ? OR user_preferences.generation_count < ?",
			Vars: []any{period, limit},
		}}}
	}

	res := r.db.WithContext(ctx).Clauses(onConflict).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseGeneration undoes a reservation that did not produce personas.
func (r *repositoryImpl) ReleaseGeneration(ctx context.Context, userID, period string) error {
	return r.db.WithContext(ctx).
		Model(&models.UserPreferences{}).
		Where("user_id = ? AND generation_period = ? AND generation_count > 0", userID, period).
		UpdateColumn("generation_count", gorm.Expr("generation_count - 1")).Error
}
