package generation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/angelmondragon/personacraft-backend/internal/enrichment"
	"github.com/angelmondragon/personacraft-backend/internal/personas"
)

// Profile is the audience signal extracted from a brief before drafting.
type Profile struct {
	AgeMin    int      `json:"ageMin,omitempty"`
	AgeMax    int      `json:"ageMax,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Values    []string `json:"values,omitempty"`
	Location  string   `json:"location,omitempty"`
	Count     int      `json:"count,omitempty"`
}

// ProfileOverrides are explicit request fields that win over extraction.
type ProfileOverrides struct {
	AgeMin    *int     `json:"ageMin,omitempty" validate:"omitempty,min=18,max=99"`
	AgeMax    *int     `json:"ageMax,omitempty" validate:"omitempty,min=18,max=99"`
	Interests []string `json:"interests,omitempty" validate:"omitempty,max=20,dive,max=64"`
	Values    []string `json:"values,omitempty" validate:"omitempty,max=20,dive,max=64"`
	Location  *string  `json:"location,omitempty" validate:"omitempty,max=120"`
}

var (
	ageRangePattern  = regexp.MustCompile(`\b(\d{2})\s*(?:-|–|to)\s*(\d{2})\b`)
	ageSinglePattern = regexp.MustCompile(`(?i)\b(?:aged?|age of)\s+(\d{2})\b|\b(\d{2})\s*(?:-\s*)?(?:year[- ]olds?|yos?)\b`)
	agePlusPattern   = regexp.MustCompile(`(?i)\b(\d{2})\s*\+|\bover\s+(\d{2})\b`)
	countPattern     = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:distinct\s+|different\s+|unique\s+)?(?:personas?|profiles?|customer profiles?)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// interestKeywords maps brief vocabulary onto canonical interests.
var interestKeywords = map[string][]string{
	"fitness":       {"fitness", "gym", "workout", "running", "runner", "runners", "yoga"},
	"travel":        {"travel", "traveler", "traveller", "vacation", "tourism"},
	"cooking":       {"cooking", "recipes", "baking", "home cooks", "chef"},
	"gaming":        {"gaming", "gamer", "video games", "esports"},
	"fashion":       {"fashion", "apparel", "clothing", "streetwear"},
	"music":         {"music", "concerts", "festival"},
	"technology":    {"tech", "technology", "gadgets", "software", "saas", "ai"},
	"outdoors":      {"outdoor", "outdoors", "hiking", "camping", "climbing"},
	"parenting":     {"parent", "parents", "moms", "dads", "kids", "families"},
	"finance":       {"finance", "investing", "budgeting", "savings", "fintech"},
	"beauty":        {"beauty", "skincare", "makeup", "cosmetics"},
	"wellness":      {"wellness", "mental health", "meditation", "self-care"},
	"sports":        {"sports", "football", "soccer", "basketball"},
	"reading":       {"books", "reading", "readers"},
	"food":          {"food", "foodies", "restaurants", "dining"},
	"coffee":        {"coffee", "cafe", "espresso"},
	"pets":          {"pet", "pets", "dog", "dogs", "cat", "cats"},
	"art":           {"art", "design", "creative", "creatives"},
}

var valueKeywords = map[string][]string{
	"sustainability": {"sustainable", "sustainability", "eco-friendly", "eco friendly", "green", "climate"},
	"family":         {"family", "families"},
	"innovation":     {"innovative", "innovation", "early adopter", "cutting-edge"},
	"convenience":    {"convenient", "convenience", "busy", "time-saving"},
	"quality":        {"quality", "premium", "craftsmanship"},
	"affordability":  {"affordable", "budget", "cheap", "value for money", "discount"},
	"community":      {"community", "local"},
	"health":         {"healthy", "health", "organic", "nutrition"},
	"luxury":         {"luxury", "high-end", "exclusive"},
	"authenticity":   {"authentic", "authenticity", "transparent"},
}

// ExtractProfile derives audience signals from free text. It never fails;
// anything it cannot find stays zero.
func ExtractProfile(brief string) Profile {
	var profile Profile
	lower := strings.ToLower(brief)

	if m := ageRangePattern.FindStringSubmatch(lower); m != nil {
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		profile.AgeMin, profile.AgeMax = clampAge(lo), clampAge(hi)
	} else if m := ageSinglePattern.FindStringSubmatch(lower); m != nil {
		age, _ := strconv.Atoi(firstNonEmpty(m[1:]...))
		profile.AgeMin, profile.AgeMax = clampAge(age), clampAge(age)
	} else if m := agePlusPattern.FindStringSubmatch(lower); m != nil {
		age, _ := strconv.Atoi(firstNonEmpty(m[1:]...))
		profile.AgeMin, profile.AgeMax = clampAge(age), personas.MaxAge
	}

	if m := countPattern.FindStringSubmatch(lower); m != nil {
		if n, ok := numberWords[m[1]]; ok {
			profile.Count = n
		} else if n, err := strconv.Atoi(m[1]); err == nil {
			profile.Count = n
		}
	}

	profile.Interests = matchKeywords(lower, interestKeywords)
	profile.Values = matchKeywords(lower, valueKeywords)
	if city, ok := enrichment.KnownCity(lower); ok {
		profile.Location = titleCase(city)
	}
	return profile
}

// Apply returns p with every non-nil override taken over.
func (p Profile) Apply(overrides *ProfileOverrides) Profile {
	if overrides == nil {
		return p
	}
	if overrides.AgeMin != nil {
		p.AgeMin = clampAge(*overrides.AgeMin)
	}
	if overrides.AgeMax != nil {
		p.AgeMax = clampAge(*overrides.AgeMax)
	}
	if p.AgeMin > 0 && p.AgeMax > 0 && p.AgeMin > p.AgeMax {
		p.AgeMin, p.AgeMax = p.AgeMax, p.AgeMin
	}
	if len(overrides.Interests) > 0 {
		p.Interests = overrides.Interests
	}
	if len(overrides.Values) > 0 {
		p.Values = overrides.Values
	}
	if overrides.Location != nil {
		p.Location = strings.TrimSpace(*overrides.Location)
	}
	return p
}

// RepresentativeAge is the midpoint of the age range, or zero when unknown.
func (p Profile) RepresentativeAge() int {
	switch {
	case p.AgeMin > 0 && p.AgeMax > 0:
		return (p.AgeMin + p.AgeMax) / 2
	case p.AgeMin > 0:
		return p.AgeMin
	default:
		return p.AgeMax
	}
}

func matchKeywords(text string, table map[string][]string) []string {
	var out []string
	for canonical, keywords := range table {
		for _, keyword := range keywords {
			if containsWord(text, keyword) {
				out = append(out, canonical)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		idx = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

func clampAge(age int) int {
	if age <= 0 {
		return 0
	}
	if age < personas.MinAge {
		return personas.MinAge
	}
	if age > personas.MaxAge {
		return personas.MaxAge
	}
	return age
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func titleCase(value string) string {
	words := strings.Fields(value)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
