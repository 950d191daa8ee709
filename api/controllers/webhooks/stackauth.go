package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/personacraft-backend/api/responses"
	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
)

const maxWebhookBodyBytes = 1 << 20

// StackAuthIngestor verifies and dispatches one delivery.
type StackAuthIngestor interface {
	Ingest(ctx context.Context, header http.Header, body []byte) (string, error)
}

// StackAuthWebhook verifies and applies a Stack Auth user lifecycle event.
// Events whose processing fails are still acknowledged.
func StackAuthWebhook(ingestor StackAuthIngestor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ingestor == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook ingestor unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		if _, err := ingestor.Ingest(ctx, r.Header, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
