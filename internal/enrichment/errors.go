package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Severity decides how the generation pipeline reacts to a provider failure.
type Severity string

const (
	// SeverityPartial means one category failed; it is filled locally.
	SeverityPartial Severity = "partial"
	// SeverityCritical means the provider is unusable for this request; the
	// caller drops the cultural-context path entirely.
	SeverityCritical Severity = "critical"
)

var errProviderDisabled = errors.New("taste provider not configured")

// Error is the only error type the adapter returns.
type Error struct {
	Severity Severity
	Category string
	Err      error
}

func (e *Error) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("enrichment %s: %v", e.Severity, e.Err)
	}
	return fmt.Sprintf("enrichment %s (%s): %v", e.Severity, e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Critical reports whether err is an enrichment error with critical severity.
func Critical(err error) bool {
	var enrichErr *Error
	return errors.As(err, &enrichErr) && enrichErr.Severity == SeverityCritical
}

type statusCoder interface {
	HTTPStatusCode() int
}

// Classify maps any provider failure for one category onto a severity.
// Auth failures, outages, transport errors and a missing provider are
// critical; everything else is limited to the category.
func Classify(category string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	severity := SeverityPartial
	var status statusCoder
	switch {
	case errors.Is(err, errProviderDisabled):
		severity = SeverityCritical
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		severity = SeverityCritical
	case errors.As(err, &status):
		switch status.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			severity = SeverityCritical
		}
	case isTransport(err):
		severity = SeverityCritical
	}
	return &Error{Severity: severity, Category: category, Err: err}
}

func isTransport(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
