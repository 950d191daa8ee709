package personas

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	"github.com/angelmondragon/personacraft-backend/pkg/db"
	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/pagination"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userEnsurer interface {
	Ensure(ctx context.Context, identity users.Identity) (*models.User, error)
}

// Service owns persona reads and writes. Every write first ensures the owning
// user exists so rows never reference an unprovisioned account.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*types.Persona, error)
	Update(ctx context.Context, input UpdateInput) (*types.Persona, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
	Migrate(ctx context.Context, identity users.Identity, raw []any) (*MigrateResult, error)
	SaveGenerated(ctx context.Context, identity users.Identity, personas []types.Persona, source enums.PersonaSource) ([]types.Persona, error)
}

type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Users     userEnsurer
	Validator *Validator
}

type service struct {
	repo      Repository
	tx        txRunner
	users     userEnsurer
	validator *Validator
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "personas repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users service required")
	}
	validator := params.Validator
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		users:     params.Users,
		validator: validator,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	query := listParams{UserID: params.UserID, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list personas")
	}

	items := make([]types.Persona, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Domain())
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Get(ctx context.Context, userID string, id uuid.UUID) (*types.Persona, error) {
	row, err := s.findOwned(ctx, s.repo, userID, id)
	if err != nil {
		return nil, err
	}
	persona := row.Domain()
	return &persona, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*types.Persona, error) {
	if input.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "persona id required")
	}
	if len(input.Fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if _, err := s.users.Ensure(ctx, input.Identity); err != nil {
		return nil, err
	}

	var updated types.Persona
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.findOwned(ctx, repo, input.Identity.ID, input.ID)
		if err != nil {
			return err
		}

		merged, err := mergeFields(row.Domain(), input.Fields)
		if err != nil {
			return err
		}
		persona, issues := s.validator.ValidateOne(0, merged)
		if persona == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid persona").WithDetails(issues)
		}
		persona.ID = row.ID
		persona.UserID = row.UserID
		persona.CreatedAt = row.CreatedAt

		next := models.PersonaFromDomain(*persona, enums.PersonaSourceEdited)
		if err := repo.Save(ctx, &next); err != nil {
			return mapWriteError(err, "update persona")
		}
		updated = next.Domain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "persona id required")
	}
	deleted, err := s.repo.DeleteOwned(ctx, userID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete persona")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "persona not found")
	}
	return nil
}

// Migrate bulk-upserts client-cached personas. Candidates failing validation
// are skipped and reported; a re-run with the same names updates in place.
func (s *service) Migrate(ctx context.Context, identity users.Identity, raw []any) (*MigrateResult, error) {
	result := &MigrateResult{TotalCount: len(raw)}
	if len(raw) == 0 {
		return result, nil
	}
	if _, err := s.users.Ensure(ctx, identity); err != nil {
		return nil, err
	}

	valid := make([]types.Persona, 0, len(raw))
	for idx, candidate := range raw {
		persona, issues := s.validator.ValidateOne(idx, candidate)
		result.Issues = append(result.Issues, issues...)
		if persona != nil {
			valid = append(valid, *persona)
		}
	}
	if len(valid) == 0 {
		return result, nil
	}

	stored, err := s.upsertAll(ctx, identity.ID, valid, enums.PersonaSourceMigrated)
	if err != nil {
		return nil, err
	}
	result.MigratedCount = len(stored)
	return result, nil
}

func (s *service) SaveGenerated(ctx context.Context, identity users.Identity, personas []types.Persona, source enums.PersonaSource) ([]types.Persona, error) {
	if len(personas) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no personas to save")
	}
	if !source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invalid persona source")
	}
	if _, err := s.users.Ensure(ctx, identity); err != nil {
		return nil, err
	}
	return s.upsertAll(ctx, identity.ID, personas, source)
}

func (s *service) upsertAll(ctx context.Context, userID string, personas []types.Persona, source enums.PersonaSource) ([]types.Persona, error) {
	personas = latestByName(personas)
	stored := make([]types.Persona, 0, len(personas))
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, persona := range personas {
			// Identity is server-assigned; (user_id, name) is the upsert key.
			persona.ID = uuid.Nil
			persona.UserID = userID
			row := models.PersonaFromDomain(persona, source)
			saved, err := repo.Upsert(ctx, &row)
			if err != nil {
				return mapWriteError(err, "save persona")
			}
			stored = append(stored, saved.Domain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// latestByName collapses personas sharing a name to the last one, keeping
// the position of the first.
func latestByName(personas []types.Persona) []types.Persona {
	index := make(map[string]int, len(personas))
	out := make([]types.Persona, 0, len(personas))
	for _, persona := range personas {
		if at, seen := index[persona.Name]; seen {
			out[at] = persona
			continue
		}
		index[persona.Name] = len(out)
		out = append(out, persona)
	}
	return out
}

func (s *service) findOwned(ctx context.Context, repo Repository, userID string, id uuid.UUID) (*models.Persona, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "persona id required")
	}
	row, err := repo.FindOwned(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "persona not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load persona")
	}
	return row, nil
}

// mapWriteError keeps raw database text out of user-facing errors.
func mapWriteError(err error, action string) error {
	switch {
	case db.IsForeignKeyViolation(err):
		return pkgerrors.Wrap(pkgerrors.CodeReconnect, err, action)
	case db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a persona with this name already exists")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}

func mergeFields(current types.Persona, fields map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(current)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode persona")
	}
	var base map[string]any
	if err := json.Unmarshal(encoded, &base); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode persona")
	}
	for key, value := range fields {
		switch key {
		case "id", "userId", "createdAt":
			continue
		}
		base[key] = value
	}
	return base, nil
}
