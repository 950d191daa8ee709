package enrichment

import "strings"

// regionCodes maps lower-case city names to the region codes the taste
// provider expects for location signals.
var regionCodes = map[string]string{
	"new york":      "US-NY",
	"new york city": "US-NY",
	"nyc":           "US-NY",
	"brooklyn":      "US-NY",
	"los angeles":   "US-CA",
	"la":            "US-CA",
	"san francisco": "US-CA",
	"san diego":     "US-CA",
	"san jose":      "US-CA",
	"oakland":       "US-CA",
	"seattle":       "US-WA",
	"portland":      "US-OR",
	"chicago":       "US-IL",
	"austin":        "US-TX",
	"dallas":        "US-TX",
	"houston":       "US-TX",
	"san antonio":   "US-TX",
	"miami":         "US-FL",
	"orlando":       "US-FL",
	"tampa":         "US-FL",
	"atlanta":       "US-GA",
	"boston":        "US-MA",
	"denver":        "US-CO",
	"phoenix":       "US-AZ",
	"las vegas":     "US-NV",
	"nashville":     "US-TN",
	"philadelphia":  "US-PA",
	"pittsburgh":    "US-PA",
	"washington":    "US-DC",
	"detroit":       "US-MI",
	"minneapolis":   "US-MN",
	"toronto":       "CA-ON",
	"vancouver":     "CA-BC",
	"montreal":      "CA-QC",
	"mexico city":   "MX",
	"london":        "GB",
	"manchester":    "GB",
	"edinburgh":     "GB",
	"dublin":        "IE",
	"paris":         "FR",
	"berlin":        "DE",
	"munich":        "DE",
	"madrid":        "ES",
	"barcelona":     "ES",
	"lisbon":        "PT",
	"rome":          "IT",
	"milan":         "IT",
	"amsterdam":     "NL",
	"stockholm":     "SE",
	"copenhagen":    "DK",
	"tokyo":         "JP",
	"seoul":         "KR",
	"singapore":     "SG",
	"sydney":        "AU",
	"melbourne":     "AU",
	"mumbai":        "IN",
	"bangalore":     "IN",
	"sao paulo":     "BR",
	"são paulo":     "BR",
	"buenos aires":  "AR",
}

// RegionCode converts a free-text location into a provider region code.
// Unknown locations are returned trimmed but otherwise unchanged.
func RegionCode(location string) string {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return ""
	}
	city := strings.ToLower(trimmed)
	if idx := strings.IndexByte(city, ','); idx >= 0 {
		city = strings.TrimSpace(city[:idx])
	}
	if code, ok := regionCodes[city]; ok {
		return code
	}
	return trimmed
}

// KnownCity returns the first table city mentioned in text.
func KnownCity(text string) (string, bool) {
	lower := " " + strings.ToLower(text) + " "
	best := ""
	for city := range regionCodes {
		if len(city) <= 2 {
			continue
		}
		if strings.Contains(lower, " "+city+" ") || strings.Contains(lower, " "+city+",") || strings.Contains(lower, " "+city+".") {
			if len(city) > len(best) || (len(city) == len(best) && city < best) {
				best = city
			}
		}
	}
	return best, best != ""
}
