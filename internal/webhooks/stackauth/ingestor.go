package stackauthwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
	"github.com/angelmondragon/personacraft-backend/pkg/logger"
	"github.com/angelmondragon/personacraft-backend/pkg/metrics"
	"github.com/angelmondragon/personacraft-backend/pkg/stackauth"
)

// Outcome values recorded per delivery.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

type verifier interface {
	Verify(headers stackauth.WebhookHeaders, body []byte) error
}

type eventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

type guard interface {
	CheckAndMark(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

type IngestorParams struct {
	Verifier verifier
	Handler  eventHandler
	Guard    guard
	Logger   *logger.Logger
	Metrics  *metrics.Pipeline
}

// Ingestor verifies, deduplicates and dispatches webhook deliveries.
type Ingestor struct {
	verifier verifier
	handler  eventHandler
	guard    guard
	logg     *logger.Logger
	metrics  *metrics.Pipeline
}

func NewIngestor(params IngestorParams) (*Ingestor, error) {
	switch {
	case params.Verifier == nil:
		return nil, errors.New("webhook verifier required")
	case params.Handler == nil:
		return nil, errors.New("webhook handler required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &Ingestor{
		verifier: params.Verifier,
		handler:  params.Handler,
		guard:    params.Guard,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Ingest returns an error only for deliveries that must be rejected with a
// client error. Handler failures are logged and counted but still
// acknowledged; the guard is released so a redelivery can retry.
func (i *Ingestor) Ingest(ctx context.Context, header http.Header, body []byte) (string, error) {
	headers, err := stackauth.HeadersFrom(header)
	if err != nil {
		i.metrics.IncWebhookEvent("unknown", OutcomeRejected)
		return OutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "missing webhook headers")
	}
	if err := i.verifier.Verify(headers, body); err != nil {
		i.metrics.IncWebhookEvent("unknown", OutcomeRejected)
		i.logg.Warn(i.logg.WithFields(ctx, map[string]any{"svix_id": headers.ID, "error": err.Error()}), "webhook.signature_rejected")
		return OutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "verify webhook signature")
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		i.metrics.IncWebhookEvent("unknown", OutcomeRejected)
		return OutcomeRejected, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook body")
	}
	logCtx := i.logg.WithFields(ctx, map[string]any{"svix_id": headers.ID, "event_type": event.Type})

	if i.guard != nil {
		seen, err := i.guard.CheckAndMark(ctx, headers.ID)
		if err != nil {
			// Without the guard the handlers are still idempotent.
			i.logg.Error(logCtx, "webhook.idempotency_check_failed", err)
		} else if seen {
			i.metrics.IncWebhookEvent(event.Type, OutcomeDuplicate)
			i.logg.Info(logCtx, "webhook.duplicate_delivery")
			return OutcomeDuplicate, nil
		}
	}

	err = i.handler.HandleEvent(ctx, event)
	switch {
	case err == nil:
		i.metrics.IncWebhookEvent(event.Type, OutcomeProcessed)
		i.logg.Info(logCtx, "webhook.event_processed")
		return OutcomeProcessed, nil
	case errors.Is(err, errIgnored):
		i.metrics.IncWebhookEvent(event.Type, OutcomeIgnored)
		i.logg.Info(logCtx, "webhook.event_ignored")
		return OutcomeIgnored, nil
	default:
		i.metrics.IncWebhookEvent(event.Type, OutcomeFailed)
		i.logg.Error(logCtx, "webhook.event_failed", err)
		if i.guard != nil {
			if releaseErr := i.guard.Release(ctx, headers.ID); releaseErr != nil {
				i.logg.Error(logCtx, "webhook.idempotency_release_failed", releaseErr)
			}
		}
		return OutcomeFailed, nil
	}
}
