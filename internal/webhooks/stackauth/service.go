package stackauthwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/personacraft-backend/internal/users"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

// Event types dispatched by the ingestor.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is the envelope of a Stack Auth webhook delivery.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type userPayload struct {
	ID              string  `json:"id"`
	PrimaryEmail    *string `json:"primary_email"`
	DisplayName     *string `json:"display_name"`
	ProfileImageURL *string `json:"profile_image_url"`
}

type userProjection interface {
	Sync(ctx context.Context, identity users.Identity) error
	Remove(ctx context.Context, userID string) (bool, error)
}

// Service applies verified events to the local user projection.
type Service struct {
	users userProjection
}

func NewService(projection userProjection) (*Service, error) {
	if projection == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users service required")
	}
	return &Service{users: projection}, nil
}

// errIgnored marks event types this service does not handle.
var errIgnored = errors.New("event type ignored")

// HandleEvent is idempotent per user id: creates and updates upsert, deletes
// of unknown users are no-ops.
func (s *Service) HandleEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventUserCreated, EventUserUpdated:
		payload, err := decodeUser(event.Data)
		if err != nil {
			return err
		}
		return s.users.Sync(ctx, users.Identity{
			ID:              payload.ID,
			Email:           payload.PrimaryEmail,
			DisplayName:     payload.DisplayName,
			ProfileImageURL: payload.ProfileImageURL,
		})
	case EventUserDeleted:
		payload, err := decodeUser(event.Data)
		if err != nil {
			return err
		}
		_, err = s.users.Remove(ctx, payload.ID)
		return err
	default:
		return errIgnored
	}
}

func decodeUser(raw json.RawMessage) (*userPayload, error) {
	var payload userPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode user payload")
	}
	payload.ID = strings.TrimSpace(payload.ID)
	if payload.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id missing")
	}
	return &payload, nil
}
