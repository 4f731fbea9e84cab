package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/convo/internal/status"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	OutgoingColor     tcell.Color
	IncomingColor     tcell.Color
	PendingColor      tcell.Color
	ReadMarkColor     tcell.Color
	LiveColor         tcell.Color
	OfflineColor      tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		OutgoingColor:     tcell.ColorLightSkyBlue,
		IncomingColor:     tcell.ColorPapayaWhip,
		PendingColor:      tcell.ColorGray,
		ReadMarkColor:     tcell.ColorAqua,
		LiveColor:         tcell.ColorLimeGreen,
		OfflineColor:      tcell.ColorOrangeRed,
	}
}

// StateColor returns the color used to show a subscription state.
func (t *Theme) StateColor(s status.State) tcell.Color {
	switch s {
	case status.Connected:
		return t.LiveColor
	case status.Connecting:
		return t.FlashWarnColor
	case status.Disconnected:
		return t.OfflineColor
	default:
		return t.PendingColor
	}
}

// ColorTag returns c as a tview color tag name.
func ColorTag(c tcell.Color) string {
	return colorName(c)
}
