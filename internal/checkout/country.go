package checkout

import "strings"

// shippableCountries maps the country names the storefront's address form
// offers to ISO 3166-1 alpha-2 codes. Anything unrecognized ships as US,
// matching the form's default.
var shippableCountries = map[string]string{
	"united states":  "US",
	"canada":         "CA",
	"united kingdom": "GB",
	"australia":      "AU",
	"new zealand":    "NZ",
}

// countryCode resolves a display country name to its ISO code.
func countryCode(name string) string {
	if code, ok := shippableCountries[strings.ToLower(strings.TrimSpace(name))]; ok {
		return code
	}
	return "US"
}
