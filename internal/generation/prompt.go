package generation

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/personacraft-backend/pkg/gemini"
	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

const systemPrompt = `You are a senior marketing strategist who writes realistic, specific customer personas.
Respond with a JSON array only. No markdown, no commentary.`

const personaSchema = `Each persona is an object with exactly these keys:
{
  "name": string,
  "age": integer between 18 and 99,
  "occupation": string,
  "location": string (city, region),
  "bio": string (2-3 sentences),
  "quote": string (first person),
  "demographics": {"income": string, "education": string, "familyStatus": string},
  "psychographics": {"personality": [string], "values": [string], "interests": [string], "lifestyle": string},
  "culturalData": {%s},
  "painPoints": [string],
  "goals": [string],
  "marketingInsights": {"preferredChannels": [string], "messagingTone": string, "buyingBehavior": string},
  "qualityScore": number between 0 and 100
}`

// BuildPrompt assembles the model request. cultural is nil on the fallback
// path, which drafts without injected context.
func BuildPrompt(brief string, profile Profile, count int, temperature float64, cultural *types.CulturalData) gemini.Request {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create %d distinct marketing personas for this brief:\n%s\n\n", count, strings.TrimSpace(brief))

	if audience := describeAudience(profile); audience != "" {
		sb.WriteString("Target audience signals:\n")
		sb.WriteString(audience)
		sb.WriteString("\n")
	}

	if cultural != nil {
		sb.WriteString("Ground each persona's culturalData in these audience taste signals. Reuse them where they fit and stay consistent with the persona's age and location:\n")
		for _, category := range types.CulturalCategories {
			values := cultural.Get(category)
			if len(values) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "- %s: %s\n", category, strings.Join(values, ", "))
		}
		sb.WriteString("\n")
	}

	keys := make([]string, 0, len(types.CulturalCategories))
	for _, category := range types.CulturalCategories {
		keys = append(keys, fmt.Sprintf("%q: [string]", category))
	}
	fmt.Fprintf(&sb, personaSchema, strings.Join(keys, ", "))
	fmt.Fprintf(&sb, "\n\nReturn exactly %d personas. Every culturalData key must be present; use an empty list when unsure.", count)

	return gemini.Request{
		System:      systemPrompt,
		Prompt:      sb.String(),
		Temperature: temperature,
		JSONOutput:  true,
	}
}

func describeAudience(p Profile) string {
	var lines []string
	switch {
	case p.AgeMin > 0 && p.AgeMax > 0 && p.AgeMin != p.AgeMax:
		lines = append(lines, fmt.Sprintf("- age range: %d-%d", p.AgeMin, p.AgeMax))
	case p.RepresentativeAge() > 0:
		lines = append(lines, fmt.Sprintf("- age: around %d", p.RepresentativeAge()))
	}
	if p.Location != "" {
		lines = append(lines, "- location: "+p.Location)
	}
	if len(p.Interests) > 0 {
		lines = append(lines, "- interests: "+strings.Join(p.Interests, ", "))
	}
	if len(p.Values) > 0 {
		lines = append(lines, "- values: "+strings.Join(p.Values, ", "))
	}
	return strings.Join(lines, "\n")
}
