package domain

import (
	"regexp"
	"strings"
)

// Name is a validated, normalized fully qualified domain name.
// Invariant: lowercase ASCII, 1..253 bytes, dot-separated labels of 1..63
// characters from [a-z0-9-] that neither start nor end with '-'.
//
// Usage: construct via ParseName at trust boundaries; direct casting bypasses
// validation.
type Name string

const (
	// MaxNameLength is the longest name accepted, in bytes.
	MaxNameLength = 253
	// MaxLabelLength is the longest label accepted, in bytes.
	MaxLabelLength = 63
)

// nameRE is RE2, so matching is linear in the input length. The overall
// length bound is checked separately since RE2 has no lookahead.
var nameRE = regexp.MustCompile(
	`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?` +
		`(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)*$`,
)

// ParseName trims surrounding whitespace, folds ASCII upper case and checks
// the result against the FQDN grammar. The returned error is a *DomainError
// carrying raw unchanged.
func ParseName(raw string) (Name, error) {
	d := asciiLower(strings.TrimSpace(raw))
	if len(d) == 0 {
		return "", NewDomainError(raw, "empty domain")
	}
	if len(d) > MaxNameLength {
		return "", NewDomainError(raw, "domain exceeds 253 characters")
	}
	if !nameRE.MatchString(d) {
		return "", NewDomainError(raw, diagnose(d))
	}
	return Name(d), nil
}

// MustParseName is ParseName for constants and tests. It panics on invalid input.
func MustParseName(raw string) Name {
	n, err := ParseName(raw)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string {
	return string(n)
}

// IsZero reports whether n is the zero value.
func (n Name) IsZero() bool {
	return n == ""
}

// Labels splits n into its dot-separated labels.
func (n Name) Labels() []string {
	if n == "" {
		return nil
	}
	return strings.Split(string(n), ".")
}

// asciiLower folds only A-Z. strings.ToLower would map some non-ASCII runes
// (e.g. KELVIN SIGN) onto ASCII letters and let them through the grammar.
func asciiLower(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

// diagnose names the first grammar rule d violates. Only called after the
// grammar rejected d.
func diagnose(d string) string {
	for i := 0; i < len(d); i++ {
		c := d[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '.') {
			return "illegal character"
		}
	}
	for _, label := range strings.Split(d, ".") {
		switch {
		case label == "":
			return "empty label"
		case len(label) > MaxLabelLength:
			return "label exceeds 63 characters"
		case label[0] == '-' || label[len(label)-1] == '-':
			return "label starts or ends with a hyphen"
		}
	}
	return "malformed domain"
}
