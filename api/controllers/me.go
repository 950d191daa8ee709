package controllers

import (
	"net/http"

	"github.com/angelmondragon/personacraft-backend/api/responses"
	"github.com/angelmondragon/personacraft-backend/internal/users"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

// Me returns the caller's local projection, provisioning it on first use.
func Me(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		user, err := svc.Ensure(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, users.FromModel(user))
	}
}
