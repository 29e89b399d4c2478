package geo

import "strings"

// Normalize lowercases s and strips every non-alphanumeric rune. Diacritics
// and punctuation disappear entirely, so "Farg'ona" and "Fargona" normalize
// to the same string.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Matches reports whether the declared and observed place names agree under
// the fuzzy containment rule: after normalization, one must be a substring
// of the other. "Fergana" matches "Fergana Region" and vice versa.
//
// The rule is deliberately permissive in both directions and can over-match
// for very short names. That looseness is part of the contract; tightening
// it is a product decision, not a bug fix.
func Matches(declared, observed string) bool {
	if observed == "" {
		return false
	}
	d := Normalize(declared)
	o := Normalize(observed)
	if d == "" || o == "" {
		return false
	}
	return strings.Contains(o, d) || strings.Contains(d, o)
}

// EqualNormalized reports strict equality of the normalized forms. Used for
// the country name fallback when no ISO code is available.
func EqualNormalized(a, b string) bool {
	na := Normalize(a)
	if na == "" {
		return false
	}
	return na == Normalize(b)
}
