package fighter

import "strings"

const CountryUnknown = "Unknown"

// Origin is the classified country/region of one fighter. Once cached for a
// name key it is treated as authoritative until explicitly invalidated.
type Origin struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	State       *string `json:"state"`
	IsDagestani bool    `json:"isDagestani"`
}

// CacheKey normalizes a fighter name into its cache key.
func CacheKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// UnknownOrigin is the deterministic fallback used when classification is
// unavailable or fails.
func UnknownOrigin(name string) Origin {
	return Origin{
		Name:        name,
		Country:     CountryUnknown,
		State:       nil,
		IsDagestani: false,
	}
}
