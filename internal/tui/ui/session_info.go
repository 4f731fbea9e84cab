package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds the header fields.
type SessionData struct {
	Profile       string
	User          string
	Email         string
	Live          bool
	Conversations int
	Unread        int
	Uptime        time.Duration
}

// SessionInfo displays the signed-in account in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := colorName(si.theme.FgColor)
	counterColor := colorName(si.theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}
	live, liveColor := "offline", colorName(si.theme.OfflineColor)
	if data.Live {
		live, liveColor = "live", colorName(si.theme.LiveColor)
	}

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Cable:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Convos:[-:-:-]  [%s]%d[-] ([%s]%d[-] unread)\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, tview.Escape(data.Profile),
		fgColor, counterColor, tview.Escape(user),
		fgColor, liveColor, live,
		fgColor, counterColor, data.Conversations, counterColor, data.Unread,
		fgColor, counterColor, formatDuration(data.Uptime),
	)

	_, _ = fmt.Fprint(si, text)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
