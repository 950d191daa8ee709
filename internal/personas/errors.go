package personas

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
)

const snippetLimit = 300

// ParseError means the model output could not be decoded into candidates.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse persona response"
	}
	return fmt.Sprintf("parse persona response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(raw string, err error) *ParseError {
	return &ParseError{Snippet: truncate(raw, snippetLimit), Err: err}
}

// Issue is one field-level diagnostic for a rejected or repaired candidate.
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("candidate %d: %s: %s", i.Index, i.Field, i.Message)
}

// ValidationError is the hard failure raised when nothing survived validation.
// The brief is echoed for diagnosis.
type ValidationError struct {
	Brief  string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("no valid personas for brief %q", truncate(e.Brief, snippetLimit))
	}
	return fmt.Sprintf("no valid personas for brief %q: %v", truncate(e.Brief, snippetLimit), e.Unwrap())
}

// Unwrap exposes the issues as a combined error.
func (e *ValidationError) Unwrap() error {
	var combined error
	for _, issue := range e.Issues {
		combined = multierr.Append(combined, issue)
	}
	return combined
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "..."
}
