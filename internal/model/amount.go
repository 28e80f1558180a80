package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var usd = message.NewPrinter(language.AmericanEnglish)

// ParseCents parses a currency string like "$426,100" or "426,100.50" into
// integer cents. Returns nil for blank or placeholder values ("TBD").
func ParseCents(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "tbd") || strings.EqualFold(s, "not available") {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "USD")
	s = strings.TrimPrefix(s, "US$")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return nil, eris.Errorf("amount: cannot parse %q", s)
	}

	var dollars int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return nil, eris.Errorf("amount: cannot parse %q", s)
		}
		dollars = dollars*10 + int64(c-'0')
	}
	cents := dollars * 100

	switch len(frac) {
	case 0:
	case 2:
		for _, c := range frac {
			if c < '0' || c > '9' {
				return nil, eris.Errorf("amount: cannot parse %q", s)
			}
		}
		cents += int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	default:
		return nil, eris.Errorf("amount: unexpected fraction in %q", s)
	}
	return &cents, nil
}

// FormatCents renders cents as a grouped dollar string, e.g. "$426,100.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return usd.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Cents is a convenience for literal amounts in tests and fixtures.
func Cents(v int64) *int64 { return &v }
