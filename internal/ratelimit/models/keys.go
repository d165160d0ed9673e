package models

import "strings"

const keyPrefix = "leitstand:ratelimit:"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so an identifier containing ':' cannot address an adjacent bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewIPRateLimitKey returns the bucket key for a client address. IPv6
// colons are escaped.
func NewIPRateLimitKey(ip string) string {
	return keyPrefix + "ip:" + SanitizeKeySegment(ip)
}
