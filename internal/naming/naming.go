// Package naming mints identifiers for imported tables and normalizes header
// names into backend-safe column identifiers.
package naming

import (
	"fmt"
	"strings"
	"unicode"
)

// maxIdentLen bounds normalized identifiers so they stay usable as column or
// table names in every storage backend.
const maxIdentLen = 63

// Resolve returns desired unchanged when it is absent from existing,
// otherwise the first "desired_N" (N = 1, 2, ...) not already present.
//
// Resolve is deterministic and total: it never mutates existing, and it
// terminates for any finite set because the suffix space is unbounded.
// Callers must consult the live identifier set at commit time, not stage
// time, so concurrent commits cannot be handed colliding names.
func Resolve(desired string, existing map[string]struct{}) string {
	if desired == "" {
		desired = "table"
	}
	if _, taken := existing[desired]; !taken {
		return desired
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", desired, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

// NormalizeFieldName converts an arbitrary header or sheet name into a
// lower_snake identifier: letters and digits kept, runs of anything else
// collapsed to a single underscore, leading digits prefixed, and the result
// truncated to a backend-safe length.
//
// Edge cases:
//   - An empty or fully-stripped input yields "field".
//   - A leading byte-order mark is removed before normalization.
func NormalizeFieldName(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // suppress a leading underscore
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "field"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "f_" + out
	}
	if len(out) > maxIdentLen {
		out = strings.TrimSuffix(out[:maxIdentLen], "_")
	}
	return out
}

// UniqueHeaders normalizes a header row and disambiguates collisions with
// the same suffix rule as Resolve, preserving order.
func UniqueHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		n := NormalizeFieldName(h)
		n = Resolve(n, seen)
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
