package controllers

import (
	"net/http"

	"github.com/angelmondragon/personacraft-backend/api/responses"
	"github.com/angelmondragon/personacraft-backend/api/validators"
	"github.com/angelmondragon/personacraft-backend/internal/preferences"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

type updatePreferencesRequest struct {
	Theme    *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Language *string `json:"language,omitempty" validate:"omitempty,min=2,max=16"`
	Autosave *bool   `json:"autosave,omitempty"`
}

// GetPreferences returns the caller's settings, falling back to defaults.
func GetPreferences(svc preferences.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		prefs, err := svc.Get(r.Context(), identity.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}

// UpdatePreferences applies a partial settings update.
func UpdatePreferences(svc preferences.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preferences service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var req updatePreferencesRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prefs, err := svc.Update(r.Context(), identity, preferences.UpdateInput{
			Theme:    req.Theme,
			Language: req.Language,
			Autosave: req.Autosave,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}
