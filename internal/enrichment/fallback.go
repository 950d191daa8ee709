package enrichment

import (
	"strings"

	"github.com/angelmondragon/personacraft-backend/pkg/types"
)

// Age brackets understood by the taste provider's demographic signal.
const (
	Bracket24AndYounger = "24_and_younger"
	Bracket25To29       = "25_to_29"
	Bracket30To34       = "30_to_34"
	Bracket35To44       = "35_to_44"
	Bracket45To54       = "45_to_54"
	Bracket55AndOlder   = "55_and_older"
)

// AgeBracket maps an age to a provider bracket. Zero means unknown.
func AgeBracket(age int) string {
	switch {
	case age <= 0:
		return ""
	case age <= 24:
		return Bracket24AndYounger
	case age <= 29:
		return Bracket25To29
	case age <= 34:
		return Bracket30To34
	case age <= 44:
		return Bracket35To44
	case age <= 54:
		return Bracket45To54
	default:
		return Bracket55AndOlder
	}
}

// socialByBracket is the base platform list per age bracket.
var socialByBracket = map[string][]string{
	Bracket24AndYounger: {"TikTok", "Instagram", "Snapchat", "YouTube", "Discord"},
	Bracket25To29:       {"Instagram", "TikTok", "YouTube", "X", "Reddit"},
	Bracket30To34:       {"Instagram", "YouTube", "LinkedIn", "TikTok", "Reddit"},
	Bracket35To44:       {"Facebook", "Instagram", "LinkedIn", "YouTube", "Pinterest"},
	Bracket45To54:       {"Facebook", "YouTube", "LinkedIn", "Pinterest", "Instagram"},
	Bracket55AndOlder:   {"Facebook", "YouTube", "Pinterest", "Nextdoor", "LinkedIn"},
}

type keywordRule struct {
	keywords []string
	values   []string
}

// socialByOccupation puts occupation-specific platforms ahead of the bracket list.
var socialByOccupation = []keywordRule{
	{keywords: []string{"developer", "engineer", "programmer", "data", "devops"}, values: []string{"GitHub", "Reddit", "X"}},
	{keywords: []string{"designer", "illustrator", "architect"}, values: []string{"Dribbble", "Behance", "Pinterest"}},
	{keywords: []string{"photographer", "artist", "creator", "influencer"}, values: []string{"Instagram", "Behance", "YouTube"}},
	{keywords: []string{"marketing", "marketer", "sales", "recruiter", "consultant"}, values: []string{"LinkedIn", "X"}},
	{keywords: []string{"manager", "director", "executive", "founder", "ceo", "entrepreneur"}, values: []string{"LinkedIn", "X"}},
	{keywords: []string{"teacher", "nurse", "parent", "homemaker"}, values: []string{"Facebook", "Pinterest"}},
	{keywords: []string{"student"}, values: []string{"TikTok", "Discord", "Instagram"}},
	{keywords: []string{"gamer", "streamer"}, values: []string{"Twitch", "Discord", "YouTube"}},
}

// categoryByBracket holds generic, conservative picks for categories the
// provider could not answer.
var categoryByBracket = map[string]map[string][]string{
	types.CategoryMusic: {
		Bracket24AndYounger: {"Olivia Rodrigo", "Bad Bunny", "SZA", "Tyler, The Creator", "Billie Eilish"},
		Bracket25To29:       {"Taylor Swift", "The Weeknd", "Dua Lipa", "Kendrick Lamar", "Frank Ocean"},
		Bracket30To34:       {"Arctic Monkeys", "Beyoncé", "Drake", "Tame Impala", "Lana Del Rey"},
		Bracket35To44:       {"Coldplay", "Kanye West", "The Killers", "Adele", "Radiohead"},
		Bracket45To54:       {"U2", "Red Hot Chili Peppers", "Madonna", "Pearl Jam", "Foo Fighters"},
		Bracket55AndOlder:   {"The Beatles", "Fleetwood Mac", "Bruce Springsteen", "Eagles", "Stevie Wonder"},
	},
	types.CategoryMovies: {
		Bracket24AndYounger: {"Spider-Man: Across the Spider-Verse", "Dune", "Everything Everywhere All at Once"},
		Bracket25To29:       {"Interstellar", "La La Land", "Get Out"},
		Bracket30To34:       {"The Dark Knight", "Inception", "Parasite"},
		Bracket35To44:       {"The Matrix", "Fight Club", "The Lord of the Rings"},
		Bracket45To54:       {"Pulp Fiction", "Jurassic Park", "Forrest Gump"},
		Bracket55AndOlder:   {"The Godfather", "Casablanca", "Jaws"},
	},
	types.CategoryTV: {
		Bracket24AndYounger: {"Stranger Things", "Euphoria", "Wednesday"},
		Bracket25To29:       {"The Bear", "Succession", "Severance"},
		Bracket30To34:       {"Breaking Bad", "The Office", "Game of Thrones"},
		Bracket35To44:       {"The Office", "Friends", "Ted Lasso"},
		Bracket45To54:       {"Seinfeld", "The Crown", "Yellowstone"},
		Bracket55AndOlder:   {"Downton Abbey", "NCIS", "60 Minutes"},
	},
	types.CategoryBooks: {
		Bracket24AndYounger: {"Fourth Wing", "It Ends with Us", "The Hunger Games"},
		Bracket25To29:       {"Atomic Habits", "Normal People", "Project Hail Mary"},
		Bracket30To34:       {"Sapiens", "Atomic Habits", "The Midnight Library"},
		Bracket35To44:       {"Educated", "Thinking, Fast and Slow", "Where the Crawdads Sing"},
		Bracket45To54:       {"Becoming", "The Four Agreements", "Lessons in Chemistry"},
		Bracket55AndOlder:   {"The Thursday Murder Club", "All the Light We Cannot See", "A Man Called Ove"},
	},
	types.CategoryBrands: {
		Bracket24AndYounger: {"Nike", "Apple", "Glossier", "Spotify", "Shein"},
		Bracket25To29:       {"Apple", "Nike", "Patagonia", "Spotify", "Glossier"},
		Bracket30To34:       {"Apple", "Patagonia", "Allbirds", "IKEA", "Lululemon"},
		Bracket35To44:       {"Amazon", "Target", "Costco", "Apple", "Lululemon"},
		Bracket45To54:       {"Costco", "Amazon", "Target", "Toyota", "Nordstrom"},
		Bracket55AndOlder:   {"Costco", "Kohl's", "Toyota", "L.L.Bean", "Macy's"},
	},
	types.CategoryRestaurants: {
		Bracket24AndYounger: {"Chipotle", "Sweetgreen", "Raising Cane's"},
		Bracket25To29:       {"Sweetgreen", "Shake Shack", "local ramen bars"},
		Bracket30To34:       {"neighborhood bistros", "Shake Shack", "farm-to-table spots"},
		Bracket35To44:       {"Cheesecake Factory", "Panera Bread", "family-friendly Italian"},
		Bracket45To54:       {"Olive Garden", "steakhouses", "local seafood spots"},
		Bracket55AndOlder:   {"Cracker Barrel", "classic diners", "Red Lobster"},
	},
	types.CategoryTravel: {
		Bracket24AndYounger: {"Mexico City", "Bali", "Lisbon"},
		Bracket25To29:       {"Tokyo", "Barcelona", "Tulum"},
		Bracket30To34:       {"Lisbon", "Kyoto", "Iceland"},
		Bracket35To44:       {"Orlando", "Hawaii", "Costa Rica"},
		Bracket45To54:       {"Italy", "Napa Valley", "Caribbean cruises"},
		Bracket55AndOlder:   {"European river cruises", "Florida", "national parks"},
	},
	types.CategoryFashion: {
		Bracket24AndYounger: {"Zara", "Urban Outfitters", "Nike"},
		Bracket25To29:       {"Everlane", "Zara", "Aritzia"},
		Bracket30To34:       {"Everlane", "COS", "Madewell"},
		Bracket35To44:       {"J.Crew", "Banana Republic", "Lululemon"},
		Bracket45To54:       {"Nordstrom", "Ralph Lauren", "Talbots"},
		Bracket55AndOlder:   {"L.L.Bean", "Chico's", "Lands' End"},
	},
	types.CategoryBeauty: {
		Bracket24AndYounger: {"Glossier", "e.l.f.", "Rare Beauty"},
		Bracket25To29:       {"The Ordinary", "Glossier", "Fenty Beauty"},
		Bracket30To34:       {"Drunk Elephant", "The Ordinary", "Sephora"},
		Bracket35To44:       {"Clinique", "Olaplex", "Sephora"},
		Bracket45To54:       {"Estée Lauder", "Clinique", "Olay"},
		Bracket55AndOlder:   {"Olay", "L'Oréal", "Neutrogena"},
	},
	types.CategoryFood: {
		Bracket24AndYounger: {"boba tea", "ramen", "tacos"},
		Bracket25To29:       {"poke bowls", "oat milk lattes", "sushi"},
		Bracket30To34:       {"plant-based meals", "craft coffee", "Thai"},
		Bracket35To44:       {"meal kits", "Mediterranean", "BBQ"},
		Bracket45To54:       {"Italian", "wine and cheese", "grilling"},
		Bracket55AndOlder:   {"home cooking", "comfort food", "baking"},
	},
}

// LocalCategory deterministically fills one category from age and
// occupation. Unknown ages use the 30-34 bracket.
func LocalCategory(category string, age int, occupation string, limit int) []string {
	bracket := AgeBracket(age)
	if bracket == "" {
		bracket = Bracket30To34
	}
	if limit <= 0 {
		limit = defaultTake
	}
	if category == types.CategorySocialMedia {
		return SocialPlatforms(bracket, occupation, limit)
	}
	values := categoryByBracket[category][bracket]
	return capped(append([]string{}, values...), limit)
}

// SocialPlatforms always produces the social media category; the taste
// provider has no entity type for platforms.
func SocialPlatforms(bracket, occupation string, limit int) []string {
	occupation = strings.ToLower(occupation)
	var picked []string
	for _, rule := range socialByOccupation {
		for _, keyword := range rule.keywords {
			if strings.Contains(occupation, keyword) {
				picked = append(picked, rule.values...)
				break
			}
		}
	}
	picked = append(picked, socialByBracket[bracket]...)
	if len(socialByBracket[bracket]) == 0 {
		picked = append(picked, socialByBracket[Bracket30To34]...)
	}
	return capped(dedupe(picked), limit)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func capped(values []string, limit int) []string {
	if values == nil {
		return []string{}
	}
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
