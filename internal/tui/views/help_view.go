package views

import (
	"fmt"

	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.ColorTag(hv.theme.MenuKeyColor)
	k := func(key string) string { return fmt.Sprintf("[%s]%s[-:-:-]", kc, key) }

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  %s      Command mode        %s     Cancel / Go back
  %s      Help                %s  Quit immediately

  [::b]Conversation List[-:-:-]

  %s  Open conversation   %s   Jump to Nth conversation
  %s      Filter              %s     Reload list
  %s      Quit

  [::b]Conversation[-:-:-]

  %s      Focus composer      %s     Conversation details
  %s  Send message        %s   Leave composer / back

  [::b]Commands (: mode)[-:-:-]

  %s     Start a conversation with a user
  %s       Open conversation by id
  %s            Reload the conversation list
  %s            Sign out of this profile
  %s / %s       Show this help
  %s / %s       Quit application
`,
		k(":"), k("Esc"),
		k("?"), k("Ctrl-C"),
		k("Enter"), k("1-9"),
		k("/"), k("r"),
		k("q"),
		k("i"), k("d"),
		k("Enter"), k("Esc"),
		k(":new <user-id>"),
		k(":open <id>"),
		k(":reload"),
		k(":logout"),
		k(":help"), k(":h"),
		k(":quit"), k(":q"),
	)

	_, _ = fmt.Fprint(hv, help)
}
