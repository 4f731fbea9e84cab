package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows matches the header height minus its padding.
const menuRows = 5

// Menu lists the active key hints in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates the hint area of the header.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints. A key listed twice (a page hint that is also a
// global binding) is shown once, with the first description.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, layoutHints(dedupHints(hints), colorName(m.theme.MenuKeyColor), colorName(m.theme.NumericKeyColor)))
}

func dedupHints(hints []MenuHint) []MenuHint {
	seen := make(map[string]bool, len(hints))
	out := make([]MenuHint, 0, len(hints))
	for _, h := range hints {
		if seen[h.Key] {
			continue
		}
		seen[h.Key] = true
		out = append(out, h)
	}
	return out
}

// layoutHints fills columns top to bottom. Cells in a column are padded to
// the widest entry of that column.
func layoutHints(hints []MenuHint, keyColor, numColor string) string {
	if len(hints) == 0 {
		return ""
	}
	cols := (len(hints) + menuRows - 1) / menuRows
	widths := make([]int, cols)
	for i, h := range hints {
		c := i / menuRows
		widths[c] = max(widths[c], len(h.Key)+2+1+len(h.Description))
	}

	var b strings.Builder
	for r := 0; r < min(menuRows, len(hints)); r++ {
		for c := 0; c < cols; c++ {
			i := c*menuRows + r
			if i >= len(hints) {
				break
			}
			h := hints[i]
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			plain := len(h.Key) + 2 + 1 + len(h.Description)
			fmt.Fprintf(&b, "[%s::b]<%s>[-:-:-] %s", kc, h.Key, h.Description)
			if c < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[c]-plain+3))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
