package personas

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

const (
	MinAge = 18
	MaxAge = 99

	minQualityScore = 0
	maxQualityScore = 100
)

// Validator normalizes parsed candidates into full personas. Identity fields
// (name, age, occupation, location) are never fabricated; every other
// structured field is repaired with an empty-but-shaped default.
type Validator struct {
	now func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Result carries the surviving personas and every issue found along the way.
type Result struct {
	Personas []types.Persona
	Issues   []Issue
}

// Validate checks each candidate independently. It only fails outright when
// the batch is empty or nothing survives.
func (v *Validator) Validate(candidates []any, brief string) (*Result, error) {
	if len(candidates) == 0 {
		return nil, &ValidationError{Brief: brief, Issues: []Issue{{Index: -1, Field: "response", Message: "no candidates"}}}
	}

	result := &Result{Personas: make([]types.Persona, 0, len(candidates))}
	for idx, candidate := range candidates {
		persona, issues := v.ValidateOne(idx, candidate)
		result.Issues = append(result.Issues, issues...)
		if persona != nil {
			result.Personas = append(result.Personas, *persona)
		}
	}

	if len(result.Personas) == 0 {
		return result, &ValidationError{Brief: brief, Issues: result.Issues}
	}
	return result, nil
}

// ValidateOne returns nil when a required field is missing or invalid.
func (v *Validator) ValidateOne(idx int, candidate any) (*types.Persona, []Issue) {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return nil, []Issue{{Index: idx, Field: "candidate", Message: fmt.Sprintf("expected object, got %T", candidate)}}
	}

	var issues []Issue
	reject := func(field, msg string) {
		issues = append(issues, Issue{Index: idx, Field: field, Message: msg})
	}

	name := requiredString(obj, "name", reject)
	occupation := requiredString(obj, "occupation", reject)
	location := requiredString(obj, "location", reject)
	age, check := parseAge(obj["age"])
	if !check.valid {
		reject("age", check.reason)
	}
	if len(issues) > 0 {
		return nil, issues
	}

	persona := types.Persona{
		ID:                parseID(obj["id"]),
		Name:              name,
		Age:               age,
		Occupation:        occupation,
		Location:          location,
		Bio:               asString(obj["bio"]),
		Quote:             asString(obj["quote"]),
		Demographics:      parseDemographics(obj["demographics"]),
		Psychographics:    parsePsychographics(obj["psychographics"]),
		CulturalData:      parseCulturalData(lookup(obj, "culturalData", "cultural_data")),
		PainPoints:        stringList(lookup(obj, "painPoints", "pain_points")),
		Goals:             stringList(obj["goals"]),
		MarketingInsights: parseMarketingInsights(lookup(obj, "marketingInsights", "marketing_insights")),
		QualityScore:      parseQualityScore(lookup(obj, "qualityScore", "quality_score")),
		CreatedAt:         v.parseCreatedAt(lookup(obj, "createdAt", "created_at")),
	}
	return ptr(persona.Normalize()), issues
}

type ageCheck struct {
	valid  bool
	reason string
}

func parseAge(raw any) (int, ageCheck) {
	var value float64
	switch v := raw.(type) {
	case nil:
		return 0, ageCheck{reason: "is required"}
	case float64:
		value = v
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, ageCheck{reason: "must be numeric"}
		}
		value = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ageCheck{reason: "must be numeric"}
		}
		value = f
	default:
		return 0, ageCheck{reason: "must be numeric"}
	}
	if math.IsNaN(value) || value != math.Trunc(value) {
		return 0, ageCheck{reason: "must be an integer"}
	}
	if value < MinAge || value > MaxAge {
		return 0, ageCheck{reason: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)}
	}
	return int(value), ageCheck{valid: true}
}

func parseQualityScore(raw any) float64 {
	var score float64
	switch v := raw.(type) {
	case float64:
		score = v
	case int:
		score = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return minQualityScore
		}
		score = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return minQualityScore
		}
		score = f
	default:
		return minQualityScore
	}
	if math.IsNaN(score) {
		return minQualityScore
	}
	return math.Max(minQualityScore, math.Min(maxQualityScore, score))
}

func (v *Validator) parseCreatedAt(raw any) time.Time {
	if s, ok := raw.(string); ok {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return t.UTC()
			}
		}
	}
	return v.now().UTC()
}

func parseID(raw any) uuid.UUID {
	if s, ok := raw.(string); ok {
		if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
			return id
		}
	}
	return uuid.New()
}

func parseDemographics(raw any) types.Demographics {
	obj, _ := raw.(map[string]any)
	return types.Demographics{
		Income:       asString(obj["income"]),
		Education:    asString(obj["education"]),
		FamilyStatus: asString(lookup(obj, "familyStatus", "family_status")),
	}
}

func parsePsychographics(raw any) types.Psychographics {
	obj, _ := raw.(map[string]any)
	return types.Psychographics{
		Personality: stringList(obj["personality"]),
		Values:      stringList(obj["values"]),
		Interests:   stringList(obj["interests"]),
		Lifestyle:   asString(obj["lifestyle"]),
	}.Normalize()
}

func parseMarketingInsights(raw any) types.MarketingInsights {
	obj, _ := raw.(map[string]any)
	return types.MarketingInsights{
		PreferredChannels: stringList(lookup(obj, "preferredChannels", "preferred_channels", "channels")),
		MessagingTone:     asString(lookup(obj, "messagingTone", "messaging_tone", "tone")),
		BuyingBehavior:    asString(lookup(obj, "buyingBehavior", "buying_behavior")),
	}.Normalize()
}

var culturalAliases = map[string][]string{
	types.CategoryTV:          {"television", "tvShows", "tv_shows"},
	types.CategoryMovies:      {"films", "film"},
	types.CategorySocialMedia: {"social_media", "socialmedia", "social"},
}

// parseCulturalData merges provided categories over the all-empty default.
func parseCulturalData(raw any) types.CulturalData {
	data := types.EmptyCulturalData()
	obj, ok := raw.(map[string]any)
	if !ok {
		return data
	}
	for _, category := range types.CulturalCategories {
		keys := append([]string{category}, culturalAliases[category]...)
		if value := lookup(obj, keys...); value != nil {
			data.Set(category, stringList(value))
		}
	}
	return data.Normalize()
}

func requiredString(obj map[string]any, field string, reject func(field, msg string)) string {
	value := asString(obj[field])
	if value == "" {
		reject(field, "is required")
	}
	return value
}

func lookup(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// stringList accepts JSON arrays or comma-separated strings.
func stringList(raw any) []string {
	out := []string{}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, item := range strings.Split(v, ",") {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }
