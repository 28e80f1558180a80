package model

import (
	"regexp"
	"strings"
)

// stateRE matches a standalone two-letter state code at comma or space
// boundaries, avoiding false positives inside street names.
var stateRE = regexp.MustCompile(
	`(?:,\s*|\s+)(AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|IA|ID|IL|IN|KS|KY|LA|MA|MD|ME|MI|MN|MO|MS|MT|NC|ND|NE|NH|NJ|NM|NV|NY|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VA|VT|WA|WI|WV|WY)\b(?:\s*,|\s+|$)`)

// ExtractState pulls the two-letter state code out of a street address,
// e.g. "107 Vaughan Memorial Dr, Selma, AL 36701" -> "AL".
func ExtractState(address string) string {
	m := stateRE.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

var nonKeyRE = regexp.MustCompile(`[^a-z0-9]+`)

// PropertyID derives the reconciliation key from a street address. Listings
// and outcome emails reference the same property through differently
// formatted address strings, so the key is the address lowercased with all
// punctuation and whitespace collapsed to single dashes.
func PropertyID(address string) string {
	s := strings.ToLower(strings.TrimSpace(address))
	s = nonKeyRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
