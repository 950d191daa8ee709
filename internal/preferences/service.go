package preferences

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

const maxLanguageLength = 16

type userEnsurer interface {
	Ensure(ctx context.Context, identity users.Identity) (*models.User, error)
}

// Preferences is the API view of a user's settings.
type Preferences struct {
	Theme           enums.Theme `json:"theme"`
	Language        string      `json:"language"`
	Autosave        bool        `json:"autosave"`
	GenerationCount int         `json:"generationCount"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
}

// UpdateInput holds optional fields; nil means unchanged.
type UpdateInput struct {
	Theme    *string
	Language *string
	Autosave *bool
}

// Service reads and writes preferences and the monthly generation counter.
type Service interface {
	Get(ctx context.Context, userID string) (*Preferences, error)
	Update(ctx context.Context, identity users.Identity, input UpdateInput) (*Preferences, error)
	GenerationCount(ctx context.Context, userID string) (int, error)
	ReserveGeneration(ctx context.Context, userID string, limit int) (bool, error)
	ReleaseGeneration(ctx context.Context, userID string) error
}

type ServiceParams struct {
	Repo  Repository
	Users userEnsurer
	Now   func() time.Time
}

type service struct {
	repo  Repository
	users userEnsurer
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "preferences repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, users: params.Users, now: now}, nil
}

func (s *service) Get(ctx context.Context, userID string) (*Preferences, error) {
	row, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toDTO(row)
	if row.GenerationPeriod != s.period() {
		dto.GenerationCount = 0
	}
	return dto, nil
}

func (s *service) Update(ctx context.Context, identity users.Identity, input UpdateInput) (*Preferences, error) {
	row := defaults(identity.ID)
	var columns []string

	if input.Theme != nil {
		theme, err := enums.ParseTheme(*input.Theme)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid theme")
		}
		row.Theme = theme
		columns = append(columns, "theme")
	}
	if input.Language != nil {
		language := strings.TrimSpace(*input.Language)
		if language == "" || len(language) > maxLanguageLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid language")
		}
		row.Language = language
		columns = append(columns, "language")
	}
	if input.Autosave != nil {
		row.Autosave = *input.Autosave
		columns = append(columns, "autosave")
	}
	if len(columns) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no preferences to update")
	}

	if _, err := s.users.Ensure(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, &row, columns); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preferences")
	}
	return s.Get(ctx, identity.ID)
}

// GenerationCount returns generations in the current UTC month.
func (s *service) GenerationCount(ctx context.Context, userID string) (int, error) {
	row, err := s.load(ctx, userID)
	if err != nil {
		return 0, err
	}
	if row.GenerationPeriod != s.period() {
		return 0, nil
	}
	return row.GenerationCount, nil
}

// ReserveGeneration counts one generation against the current month. A
// limit of zero or less is unlimited. It reports false, without counting,
// when the month's limit is already reached.
func (s *service) ReserveGeneration(ctx context.Context, userID string, limit int) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	ok, err := s.repo.ReserveGeneration(ctx, userID, s.period(), limit)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve generation")
	}
	return ok, nil
}

func (s *service) ReleaseGeneration(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.ReleaseGeneration(ctx, userID, s.period()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release generation")
	}
	return nil
}

func (s *service) period() string {
	return s.now().UTC().Format("2006-01")
}

// load returns unsaved defaults when the user has never written preferences.
func (s *service) load(ctx context.Context, userID string) (*models.UserPreferences, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	row, err := s.repo.Find(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fresh := defaults(userID)
		return &fresh, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return row, nil
}

func defaults(userID string) models.UserPreferences {
	return models.UserPreferences{
		UserID:   userID,
		Theme:    enums.ThemeSystem,
		Language: "en",
		Autosave: true,
	}
}

func toDTO(row *models.UserPreferences) *Preferences {
	dto := &Preferences{
		Theme:           row.Theme,
		Language:        row.Language,
		Autosave:        row.Autosave,
		GenerationCount: row.GenerationCount,
	}
	if !row.UpdatedAt.IsZero() {
		updated := row.UpdatedAt.UTC()
		dto.UpdatedAt = &updated
	}
	return dto
}
