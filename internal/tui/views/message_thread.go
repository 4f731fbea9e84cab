package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/convo/internal/api"
	intsync "github.com/matheus3301/convo/internal/sync"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

const emptyThreadText = "No messages yet. Send the first one."

// ThreadState is everything the thread view renders.
type ThreadState struct {
	Title      string
	Entries    []intsync.Entry
	IsOutgoing func(api.Message) bool
	Loading    bool
	Error      string
	Sending    bool
}

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	errLine  *tview.TextView
	composer *tview.InputField
	title    string
	onSend   func(text string)
	onChange func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	errLine := tview.NewTextView().
		SetDynamicColors(true)
	errLine.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("Type a message...")
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetPlaceholderTextColor(theme.PendingColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(errLine, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		errLine:  errLine,
		composer: composer,
	}

	// The text stays in the field; the caller clears it once the send succeeds.
	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		mt.onSend(text)
	})
	composer.SetChangedFunc(func(text string) {
		if mt.onChange != nil {
			mt.onChange(text)
		}
	})

	return mt
}

// Name implements Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// Hints implements Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Enter", Description: "Send"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnSend sets the callback run when Enter is pressed on non-blank text.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnChange sets the callback run on every composer edit.
func (mt *MessageThread) SetOnChange(fn func(text string)) {
	mt.onChange = fn
}

// SetDraft replaces the composer text.
func (mt *MessageThread) SetDraft(text string) {
	if mt.composer.GetText() != text {
		mt.composer.SetText(text)
	}
}

// Update re-renders the thread from st.
func (mt *MessageThread) Update(st ThreadState) {
	mt.title = st.Title
	if st.Title != "" {
		mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(st.Title)))
	}

	mt.messages.Clear()
	_, _ = fmt.Fprint(mt.messages, RenderThread(st, mt.theme))
	mt.messages.ScrollToEnd()

	mt.errLine.Clear()
	if st.Error != "" {
		_, _ = fmt.Fprintf(mt.errLine, " [%s]%s[-]", ui.ColorTag(mt.theme.FlashErrColor), tview.Escape(st.Error))
	}

	mt.composer.SetDisabled(st.Sending)
	if st.Sending {
		mt.composer.SetTitle(" Sending... ")
	} else {
		mt.composer.SetTitle(" Compose (i to focus) ")
	}
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

// RenderThread formats the thread body as tview markup.
func RenderThread(st ThreadState, theme *ui.Theme) string {
	if st.Loading && len(st.Entries) == 0 {
		return "\n  [::d]Loading...[-:-:-]"
	}
	if len(st.Entries) == 0 {
		return "\n  [::d]" + emptyThreadText + "[-:-:-]"
	}
	var sb strings.Builder
	for _, e := range st.Entries {
		outgoing := e.Pending() || (st.IsOutgoing != nil && st.IsOutgoing(e.Message))
		sb.WriteString(RenderEntry(e, outgoing, theme))
	}
	return sb.String()
}

// RenderEntry formats one message. Incoming messages carry the sender's
// initial and name; outgoing ones are labelled "You" and show a read mark
// once the other side has read them.
func RenderEntry(e intsync.Entry, outgoing bool, theme *ui.Theme) string {
	body := tview.Escape(sanitizeForTerminal(e.Body))
	if !outgoing {
		name := sanitizeForTerminal(e.UserName)
		return fmt.Sprintf("[%s::b](%s) %s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			ui.ColorTag(theme.IncomingColor), tview.Escape(initial(name)), tview.Escape(name),
			formatMessageTime(e.CreatedAt), body)
	}

	var meta string
	switch {
	case e.Pending():
		meta = fmt.Sprintf("[%s]sending…[-]", ui.ColorTag(theme.PendingColor))
	case e.Read:
		meta = fmt.Sprintf("[::d]%s[-:-:-] [%s]✓✓[-]", formatMessageTime(e.CreatedAt), ui.ColorTag(theme.ReadMarkColor))
	default:
		meta = fmt.Sprintf("[::d]%s[-:-:-]", formatMessageTime(e.CreatedAt))
	}
	return fmt.Sprintf("[%s::b]You[-:-:-] %s\n%s\n\n", ui.ColorTag(theme.OutgoingColor), meta, body)
}

func initial(name string) string {
	for _, r := range name {
		return string(r)
	}
	return "?"
}

func formatMessageTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04")
}
