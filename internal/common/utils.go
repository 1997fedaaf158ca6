package common

import "strings"

// HasAny returns true if s contains any of the substrings.
func HasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Redact hides the value of secret query parameters in a URL, or in a
// message quoting one, for logging.
func Redact(rawURL string, keys ...string) string {
	out := rawURL
	for _, key := range keys {
		marker := key + "="
		start := strings.Index(out, marker)
		for start >= 0 {
			valueStart := start + len(marker)
			end := strings.IndexAny(out[valueStart:], "&#\"' ")
			if end < 0 {
				end = len(out) - valueStart
			}
			out = out[:valueStart] + "REDACTED" + out[valueStart+end:]
			next := strings.Index(out[valueStart:], marker)
			if next < 0 {
				break
			}
			start = valueStart + next
		}
	}
	return out
}
