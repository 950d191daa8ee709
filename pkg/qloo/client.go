package qloo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/personacraft-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://hackathon.api.qloo.com"
	insightsPath               = "v2/insights"
	defaultTake                = 5
	errorBodyReadLimit   int64 = 1024
	successBodyReadLimit int64 = 1 << 20
)

// Entity types accepted by the insights endpoint.
const (
	EntityArtist      = "urn:entity:artist"
	EntityMovie       = "urn:entity:movie"
	EntityTVShow      = "urn:entity:tv_show"
	EntityBook        = "urn:entity:book"
	EntityBrand       = "urn:entity:brand"
	EntityPlace       = "urn:entity:place"
	EntityDestination = "urn:entity:destination"
)

// keywordTagPrefix namespaces free-text interests as provider tags.
const keywordTagPrefix = "urn:tag:keyword:qloo:"

var (
	errAPIKeyRequired = errors.New("qloo api key is required")
	nonSlugChars      = regexp.MustCompile(`[^a-z0-9]+`)
)

// KeywordTag turns a free-text interest into a keyword tag id, or "" when
// nothing usable remains.
func KeywordTag(keyword string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(keyword), "_"), "_")
	if slug == "" {
		return ""
	}
	return keywordTagPrefix + slug
}

// APIError carries a non-2xx response from the insights API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qloo status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatusCode exposes the upstream status for classification.
func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client wraps the Qloo insights API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the insights client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// InsightsQuery scopes one insights request. Empty signals are omitted.
type InsightsQuery struct {
	EntityType   string
	AgeBracket   string
	Gender       string
	Location     string
	InterestTags []string
	Take         int
}

// Entity is a single ranked recommendation.
type Entity struct {
	ID         string
	Name       string
	Type       string
	Popularity float64
}

// Insights returns entities for the query in provider rank order.
func (c *Client) Insights(ctx context.Context, q InsightsQuery) ([]Entity, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "qloo client not configured")
	}
	if strings.TrimSpace(q.EntityType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity type is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(q), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build insights request")
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute insights request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: extractMessage(msg)}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, apiErr, "insights request failed")
	}

	var apiResp struct {
		Success bool `json:"success"`
		Results struct {
			Entities []struct {
				EntityID   string  `json:"entity_id"`
				Name       string  `json:"name"`
				Subtype    string  `json:"subtype"`
				Type       string  `json:"type"`
				Popularity float64 `json:"popularity"`
			} `json:"entities"`
		} `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, successBodyReadLimit)).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode insights response")
	}

	entities := make([]Entity, 0, len(apiResp.Results.Entities))
	for _, e := range apiResp.Results.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		entityType := e.Subtype
		if entityType == "" {
			entityType = e.Type
		}
		entities = append(entities, Entity{
			ID:         e.EntityID,
			Name:       name,
			Type:       entityType,
			Popularity: e.Popularity,
		})
	}
	return entities, nil
}

func (c *Client) buildURL(q InsightsQuery) string {
	params := url.Values{}
	params.Set("filter.type", q.EntityType)
	if q.AgeBracket != "" {
		params.Set("signal.demographics.age", q.AgeBracket)
	}
	if q.Gender != "" {
		params.Set("signal.demographics.gender", q.Gender)
	}
	if q.Location != "" {
		params.Set("signal.location.query", q.Location)
	}
	if len(q.InterestTags) > 0 {
		params.Set("signal.interests.tags", strings.Join(q.InterestTags, ","))
	}
	take := q.Take
	if take <= 0 {
		take = defaultTake
	}
	params.Set("take", strconv.Itoa(take))
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.baseURL, "/"), insightsPath, params.Encode())
}

// extractMessage pulls a human message out of the common error body shapes.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	var shaped struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &shaped); err != nil {
		return trimmed
	}
	switch v := shaped.Error.(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg, ok := v["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if shaped.Message != "" {
		return shaped.Message
	}
	if len(shaped.Errors) > 0 && shaped.Errors[0].Message != "" {
		return shaped.Errors[0].Message
	}
	return trimmed
}
