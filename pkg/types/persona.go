package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Cultural category keys as they appear on the wire.
const (
	CategoryMusic       = "music"
	CategoryMovies      = "movies"
	CategoryTV          = "tv"
	CategoryBooks       = "books"
	CategoryBrands      = "brands"
	CategoryRestaurants = "restaurants"
	CategoryTravel      = "travel"
	CategoryFashion     = "fashion"
	CategoryBeauty      = "beauty"
	CategoryFood        = "food"
	CategorySocialMedia = "socialMedia"
)

// CulturalCategories lists every category in a stable order.
var CulturalCategories = []string{
	CategoryMusic,
	CategoryMovies,
	CategoryTV,
	CategoryBooks,
	CategoryBrands,
	CategoryRestaurants,
	CategoryTravel,
	CategoryFashion,
	CategoryBeauty,
	CategoryFood,
	CategorySocialMedia,
}

// Persona is the normalized persona shape shared by the API, the generation
// pipeline and persistence.
type Persona struct {
	ID                uuid.UUID         `json:"id"`
	UserID            string            `json:"userId,omitempty"`
	Name              string            `json:"name"`
	Age               int               `json:"age"`
	Occupation        string            `json:"occupation"`
	Location          string            `json:"location"`
	Bio               string            `json:"bio"`
	Quote             string            `json:"quote"`
	Demographics      Demographics      `json:"demographics"`
	Psychographics    Psychographics    `json:"psychographics"`
	CulturalData      CulturalData      `json:"culturalData"`
	PainPoints        []string          `json:"painPoints"`
	Goals             []string          `json:"goals"`
	MarketingInsights MarketingInsights `json:"marketingInsights"`
	QualityScore      float64           `json:"qualityScore"`
	CreatedAt         time.Time         `json:"createdAt"`
}

type Demographics struct {
	Income       string `json:"income"`
	Education    string `json:"education"`
	FamilyStatus string `json:"familyStatus"`
}

type Psychographics struct {
	Personality []string `json:"personality"`
	Values      []string `json:"values"`
	Interests   []string `json:"interests"`
	Lifestyle   string   `json:"lifestyle"`
}

// Normalize replaces nil lists with empty ones.
func (p Psychographics) Normalize() Psychographics {
	p.Personality = nonNil(p.Personality)
	p.Values = nonNil(p.Values)
	p.Interests = nonNil(p.Interests)
	return p
}

type MarketingInsights struct {
	PreferredChannels []string `json:"preferredChannels"`
	MessagingTone     string   `json:"messagingTone"`
	BuyingBehavior    string   `json:"buyingBehavior"`
}

// Normalize replaces nil lists with empty ones.
func (m MarketingInsights) Normalize() MarketingInsights {
	m.PreferredChannels = nonNil(m.PreferredChannels)
	return m
}

// CulturalData holds the eleven taste categories. Every key is always
// serialized as a list, never omitted or null.
type CulturalData struct {
	Music       []string `json:"music"`
	Movies      []string `json:"movies"`
	TV          []string `json:"tv"`
	Books       []string `json:"books"`
	Brands      []string `json:"brands"`
	Restaurants []string `json:"restaurants"`
	Travel      []string `json:"travel"`
	Fashion     []string `json:"fashion"`
	Beauty      []string `json:"beauty"`
	Food        []string `json:"food"`
	SocialMedia []string `json:"socialMedia"`
}

// EmptyCulturalData returns a value with every category set to an empty list.
func EmptyCulturalData() CulturalData {
	return CulturalData{}.Normalize()
}

// Normalize replaces nil categories with empty lists.
func (c CulturalData) Normalize() CulturalData {
	for _, key := range CulturalCategories {
		ptr := c.field(key)
		*ptr = nonNil(*ptr)
	}
	return c
}

// Get returns the list stored under a wire category key.
func (c CulturalData) Get(category string) []string {
	ptr := c.field(category)
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Set stores values under a wire category key. Unknown keys are ignored.
func (c *CulturalData) Set(category string, values []string) {
	if ptr := c.field(category); ptr != nil {
		*ptr = values
	}
}

// MarshalJSON keeps the all-keys-present guarantee for values that skipped Normalize.
func (c CulturalData) MarshalJSON() ([]byte, error) {
	type plain CulturalData
	return json.Marshal(plain(c.Normalize()))
}

func (c *CulturalData) field(category string) *[]string {
	switch category {
	case CategoryMusic:
		return &c.Music
	case CategoryMovies:
		return &c.Movies
	case CategoryTV:
		return &c.TV
	case CategoryBooks:
		return &c.Books
	case CategoryBrands:
		return &c.Brands
	case CategoryRestaurants:
		return &c.Restaurants
	case CategoryTravel:
		return &c.Travel
	case CategoryFashion:
		return &c.Fashion
	case CategoryBeauty:
		return &c.Beauty
	case CategoryFood:
		return &c.Food
	case CategorySocialMedia:
		return &c.SocialMedia
	default:
		return nil
	}
}

// GenerationSources reports which upstreams contributed to a generation run.
type GenerationSources struct {
	LLM        bool `json:"llm"`
	Enrichment bool `json:"enrichment"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Normalize fills every list-valued field so the persona serializes with all
// keys present.
func (p Persona) Normalize() Persona {
	p.Psychographics = p.Psychographics.Normalize()
	p.CulturalData = p.CulturalData.Normalize()
	p.MarketingInsights = p.MarketingInsights.Normalize()
	p.PainPoints = nonNil(p.PainPoints)
	p.Goals = nonNil(p.Goals)
	return p
}
