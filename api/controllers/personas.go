package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/personacraft-backend/api/middleware"
	"github.com/angelmondragon/personacraft-backend/api/responses"
	"github.com/angelmondragon/personacraft-backend/api/validators"
	"github.com/angelmondragon/personacraft-backend/internal/generation"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

const (
	maxBriefLength     = 4000
	defaultPersonaPage = 20
	maxPersonaPage     = 100
	maxCursorLength    = 512
)

// PersonaGenerator runs the generation pipeline.
type PersonaGenerator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Response, error)
}

type generatePersonasRequest struct {
	Brief   string                       `json:"brief" validate:"required,max=4000"`
	Count   *int                         `json:"count,omitempty" validate:"omitempty,min=1,max=50"`
	Profile *generation.ProfileOverrides `json:"profile,omitempty"`
}

type migratePersonasRequest struct {
	Personas []json.RawMessage `json:"personas" validate:"required,max=200"`
}

// GeneratePersonas runs the generation pipeline for the caller's brief.
func GeneratePersonas(svc PersonaGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "generation service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var req generatePersonasRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brief := validators.SanitizeString(req.Brief, maxBriefLength)
		if brief == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "brief is required"))
			return
		}

		input := generation.Request{Identity: identity, Brief: brief, Profile: req.Profile}
		if req.Count != nil {
			input.Count = *req.Count
		}

		resp, err := svc.Generate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ListPersonas returns the caller's personas newest first.
func ListPersonas(svc personas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "personas service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultPersonaPage, 1, maxPersonaPage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cursor, err := validators.ParseQueryString(r, "cursor", maxCursorLength)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.List(r.Context(), personas.ListParams{
			UserID: identity.ID,
			Limit:  limit,
			Cursor: cursor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetPersona returns a single persona owned by the caller.
func GetPersona(svc personas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "personas service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}
		id, err := personaIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		persona, err := svc.Get(r.Context(), identity.ID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, persona)
	}
}

// UpdatePersona merges the supplied fields into a persona owned by the caller.
func UpdatePersona(svc personas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "personas service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}
		id, err := personaIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fields, err := validators.DecodeJSONObject(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(fields) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		persona, err := svc.Update(r.Context(), personas.UpdateInput{Identity: identity, ID: id, Fields: fields})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, persona)
	}
}

// DeletePersona removes a persona owned by the caller.
func DeletePersona(svc personas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "personas service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}
		id, err := personaIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), identity.ID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// MigratePersonas stores personas cached client-side before the user had an
// account. Replaying the same payload does not create duplicates.
func MigratePersonas(svc personas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "personas service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var req migratePersonasRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := make([]any, 0, len(req.Personas))
		for _, item := range req.Personas {
			var candidate any
			decoder := json.NewDecoder(bytes.NewReader(item))
			decoder.UseNumber()
			if err := decoder.Decode(&candidate); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid persona payload"))
				return
			}
			raw = append(raw, candidate)
		}

		result, err := svc.Migrate(r.Context(), identity, raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (users.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok || identity.ID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return users.Identity{}, false
	}
	return identity, true
}

func personaIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "personaId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid persona id")
	}
	return id, nil
}
