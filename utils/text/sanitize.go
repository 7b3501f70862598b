// Package text holds small text-cleaning helpers for synthesizable output.
package text

import (
	"strings"
	"unicode"
)

// StripDecorations removes emoji and other non-speakable symbol runes from a
// model output increment so they never reach the synthesizer. Letters,
// numbers, punctuation, and whitespace in any script pass through.
func StripDecorations(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0x200D: // zero-width joiner used in emoji sequences
		case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		case unicode.Is(unicode.So, r): // pictographs, emoji
		case unicode.Is(unicode.Sk, r): // modifier symbols (skin tones et al.)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
