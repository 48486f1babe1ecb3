// Package fallback provides a crude, rule-based approximation of persona
// styling. It exists purely as a safety net for when the remote transformer
// is unreachable, not as a feature.
package fallback

import "strings"

// Apply renders a degraded persona-like version of text: periods become an
// informal elongation marker, exclamation and question marks pass through
// unchanged. Total and deterministic; never returns an empty string for
// non-empty input.
func Apply(text string) string {
	if text == "" {
		return ""
	}
	return strings.ReplaceAll(text, ".", "~")
}
