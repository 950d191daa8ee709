package users

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/personacraft-backend/pkg/db/models"
	"github.com/angelmondragon/personacraft-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the local user projection.
type Service interface {
	// Ensure is the precondition for every write that attaches rows to a
	// user: the user exists with a plan and at least the default role.
	Ensure(ctx context.Context, identity Identity) (*models.User, error)
	// Sync applies an authoritative identity from the auth provider.
	Sync(ctx context.Context, identity Identity) error
	Remove(ctx context.Context, userID string) (bool, error)
	Get(ctx context.Context, userID string) (*models.User, error)
}

type ServiceParams struct {
	Repo Repository
	Tx   txRunner
}

type service struct {
	repo Repository
	tx   txRunner
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: params.Repo, tx: params.Tx}, nil
}

func (s *service) Ensure(ctx context.Context, identity Identity) (*models.User, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required")
	}
	var user *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := provision(ctx, repo, identity, false); err != nil {
			return err
		}
		loaded, err := repo.FindByID(ctx, identity.ID)
		if err != nil {
			return err
		}
		user = loaded
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure user")
	}
	return user, nil
}

func (s *service) Sync(ctx context.Context, identity Identity) error {
	if strings.TrimSpace(identity.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return provision(ctx, s.repo.WithTx(tx), identity, true)
	})
}

func (s *service) Remove(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	var removed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).Delete(ctx, userID)
		removed = deleted
		return err
	})
	return removed, err
}

func (s *service) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func provision(ctx context.Context, repo Repository, identity Identity, overwrite bool) error {
	if err := repo.EnsureDefaults(ctx); err != nil {
		return err
	}
	if err := repo.Upsert(ctx, identity, overwrite); err != nil {
		return err
	}
	return repo.EnsureRole(ctx, identity.ID, enums.RoleFree)
}
