// Package phone normalizes customer phone numbers to E.164 on a best-effort
// basis. Numbers it cannot make sense of pass through unchanged; the SMS
// provider rejecting them later is an accepted outcome.
package phone

import "strings"

// Country codes supported by deployment configuration.
const (
	CountryFR = "FR"
	CountryBE = "BE"
)

type Normalizer struct {
	countryCode string // digits only, e.g. "33"
}

func NewNormalizer(country string) *Normalizer {
	cc := "33"
	if strings.EqualFold(strings.TrimSpace(country), CountryBE) {
		cc = "32"
	}
	return &Normalizer{countryCode: cc}
}

// Normalize strips formatting and applies trunk/international prefix rules:
// "+..." is kept, "00" becomes "+", a 10-digit trunk-0 number gets the
// configured country code, and a bare country-code number gets "+" prepended.
func (n *Normalizer) Normalize(raw string) string {
	s := stripToDialable(raw)
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "+") {
		return s
	}
	if strings.HasPrefix(s, "00") {
		return "+" + s[2:]
	}
	if len(s) == 10 && strings.HasPrefix(s, "0") {
		return "+" + n.countryCode + s[1:]
	}
	if strings.HasPrefix(s, n.countryCode) && len(s) >= len(n.countryCode)+9 {
		return "+" + s
	}
	return s
}

// stripToDialable keeps digits and a leading "+" only.
func stripToDialable(raw string) string {
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
