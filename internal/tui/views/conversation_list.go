package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation list view.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []api.ConversationSummary
	visible []int64
	filter  string
	drafts  map[int64]string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list, keeping the selected conversation selected.
func (cl *ConversationList) Update(convs []api.ConversationSummary) {
	selected := cl.Selected()
	cl.convs = convs
	cl.render()
	cl.selectID(selected)
}

// SetDrafts sets the unsent text per conversation. Conversations with a
// draft show it in place of the last message.
func (cl *ConversationList) SetDrafts(drafts map[int64]string) {
	cl.drafts = drafts
}

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// Filter returns the active filter text.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" UNREAD", 0},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	row := 1
	for _, c := range cl.convs {
		if !matchesFilter(c, cl.filter) {
			continue
		}
		cl.visible = append(cl.visible, c.ID)

		unread := ""
		color := cl.theme.FgColor
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", c.UnreadCount)
			color = cl.theme.CounterColor
		}
		preview := c.Preview()
		if preview == "" {
			preview = "No messages yet"
		}
		previewColor := cl.theme.FgColor
		if d, ok := cl.drafts[c.ID]; ok {
			preview = "✎ " + d
			previewColor = cl.theme.PendingColor
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.OtherUser.Name))).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).SetExpansion(2).SetTextColor(previewColor))
		cl.SetCell(row, 2, tview.NewTableCell(unread).SetExpansion(0).SetTextColor(cl.theme.CounterColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(formatListTime(c.UpdatedAt, time.Now())).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		row++
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the id of the selected conversation, or 0.
func (cl *ConversationList) Selected() int64 {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// ByIndex returns the id of the Nth visible conversation (1-based), or 0.
func (cl *ConversationList) ByIndex(n int) int64 {
	if n < 1 || n > len(cl.visible) {
		return 0
	}
	return cl.visible[n-1]
}

func (cl *ConversationList) selectID(id int64) {
	for i, v := range cl.visible {
		if v == id {
			cl.Select(i+1, 0)
			return
		}
	}
	if len(cl.visible) > 0 {
		cl.Select(1, 0)
	}
}

func matchesFilter(c api.ConversationSummary, filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(c.OtherUser.Name), f) ||
		strings.Contains(strings.ToLower(c.Preview()), f)
}

// formatListTime shows the time of day for today and the date otherwise.
func formatListTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now = now.Local()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
