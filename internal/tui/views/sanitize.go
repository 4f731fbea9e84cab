package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal prepares server-supplied text for a tview cell.
// Control characters other than newline and tab are dropped, so a message
// cannot move the cursor or change terminal modes. Bidi overrides are
// dropped so a name cannot reorder the text around it. Emoji modifiers that
// tcell draws with the wrong width (skin tones, ZWJ, variation selectors)
// are dropped, leaving the base emoji.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if dropRune(r) {
			return -1
		}
		return r
	}, s)
}

func dropRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case unicode.IsControl(r):
		return true
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
