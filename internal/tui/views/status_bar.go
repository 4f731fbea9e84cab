package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, the signed-in user and the push state of
// the open conversation.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	user    string
	state   status.State
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme, state: status.Unbound}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetUser updates the signed-in user display.
func (sb *StatusBar) SetUser(name string) {
	sb.user = name
	sb.render()
}

// SetState updates the subscription indicator.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	user := sb.user
	if user == "" {
		user = "signed out"
	}
	_, _ = fmt.Fprint(sb, formatStatusLine(sb.profile, user, sb.state, sb.theme, time.Now()))
}

func formatStatusLine(profile, user string, s status.State, theme *ui.Theme, now time.Time) string {
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(profile), tview.Escape(user))
	if s != status.Unbound {
		line += fmt.Sprintf(" | [%s]%s[-]", ui.ColorTag(theme.StateColor(s)), s)
	}
	return line + " | " + now.Format("15:04")
}
