package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders text on the bar. Empty text clears it.
func (fb *FlashBar) Update(text string, level FlashLevel) {
	fb.Clear()
	if text == "" {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", fb.levelColor(level), tview.Escape(text))
}

func (fb *FlashBar) levelColor(level FlashLevel) string {
	switch level {
	case FlashWarn:
		return colorName(fb.theme.FlashWarnColor)
	case FlashErr:
		return colorName(fb.theme.FlashErrColor)
	default:
		return colorName(fb.theme.FlashInfoColor)
	}
}
