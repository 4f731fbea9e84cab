package views

import (
	"fmt"

	"github.com/matheus3301/convo/internal/tui/model"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays the sync details of the open conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(d model.Details) {
	ci.Clear()

	label := ui.ColorTag(ci.theme.FgColor)
	value := ui.ColorTag(ci.theme.CounterColor)
	row := func(name string, v any) {
		_, _ = fmt.Fprintf(ci, "  [%s::b]%-14s[-:-:-] [%s]%v[-]\n", label, name, value, v)
	}

	_, _ = fmt.Fprintln(ci)
	row("Conversation", d.ID)
	row("With", tview.Escape(d.OtherUser.Name))
	row("User ID", d.OtherUser.ID)
	row("Messages", d.Messages)
	row("Pending", d.Pending)
	_, _ = fmt.Fprintf(ci, "  [%s::b]%-14s[-:-:-] [%s]%s[-]\n", label, "Push channel",
		ui.ColorTag(ci.theme.StateColor(d.State)), d.State)
	row("Generation", d.Generation)
	row("Dropped", d.Dropped)
}
