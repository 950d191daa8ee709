package stackauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL           = "https://api.stack-auth.com"
	currentUserPath          = "api/v1/users/me"
	errorBodyReadLimit int64 = 1024
)

var (
	// ErrTimeout means every lookup attempt ran out of time. Callers surface it
	// as a retryable timeout rather than an authentication failure.
	ErrTimeout = errors.New("stack auth lookup timed out")
	// ErrUnauthorized means the provider rejected the access token.
	ErrUnauthorized = errors.New("stack auth rejected access token")

	errProjectRequired = errors.New("stack auth project id and secret server key are required")
)

// StatusError is an unexpected non-2xx response from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stack auth status %d: %s", e.StatusCode, e.Body)
}

// User is the subset of the provider's user object this service projects.
type User struct {
	ID              string  `json:"id"`
	PrimaryEmail    *string `json:"primary_email"`
	DisplayName     *string `json:"display_name"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// Client resolves access tokens through the Stack Auth server API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	projectID      string
	secretKey      string
	requestTimeout time.Duration
	maxElapsed     time.Duration
	initialDelay   time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeouts sets the per-attempt timeout and the total retry budget.
func WithTimeouts(perAttempt, maxElapsed time.Duration) Option {
	return func(c *Client) {
		if perAttempt > 0 {
			c.requestTimeout = perAttempt
		}
		if maxElapsed > 0 {
			c.maxElapsed = maxElapsed
		}
	}
}

// WithInitialBackoff overrides the first retry delay.
func WithInitialBackoff(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.initialDelay = delay
		}
	}
}

func NewClient(projectID, secretServerKey string, opts ...Option) (*Client, error) {
	projectID = strings.TrimSpace(projectID)
	secretServerKey = strings.TrimSpace(secretServerKey)
	if projectID == "" || secretServerKey == "" {
		return nil, errProjectRequired
	}
	client := &Client{
		httpClient:     &http.Client{},
		baseURL:        defaultBaseURL,
		projectID:      projectID,
		secretKey:      secretServerKey,
		requestTimeout: 5 * time.Second,
		maxElapsed:     12 * time.Second,
		initialDelay:   250 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CurrentUser resolves the user behind accessToken. Each attempt is bounded by
// the per-attempt timeout; transient failures back off exponentially until the
// total budget is spent. A budget exhausted by timeouts yields ErrTimeout.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	if c == nil {
		return nil, errors.New("stack auth client not configured")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrUnauthorized
	}

	var (
		user        *User
		lastTimeout bool
	)
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()

		u, err := c.fetchCurrentUser(attemptCtx, accessToken)
		switch {
		case err == nil:
			user = u
			return nil
		case errors.Is(err, ErrUnauthorized):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		lastTimeout = errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || isTimeout(err)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !retryableStatus(statusErr.StatusCode) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialDelay
	bo.MaxElapsedTime = c.maxElapsed
	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err == nil {
		return user, nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	if lastTimeout || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return nil, err
}

func (c *Client) fetchCurrentUser(ctx context.Context, accessToken string) (*User, error) {
	endpoint := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), currentUserPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-stack-access-type", "server")
	req.Header.Set("x-stack-project-id", c.projectID)
	req.Header.Set("x-stack-secret-server-key", c.secretKey)
	req.Header.Set("x-stack-access-token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode current user: %w", err))
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}
