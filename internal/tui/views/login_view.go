package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// LoginView asks for the account credentials.
type LoginView struct {
	*tview.Flex
	theme    *ui.Theme
	form     *tview.Form
	message  *tview.TextView
	onSubmit func(email, password string)
	busy     bool
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)

	lv := &LoginView{
		theme:   theme,
		form:    form,
		message: message,
	}

	form.AddInputField("Email", "", 40, nil, nil)
	form.AddPasswordField("Password", "", 40, '*', nil)
	form.AddButton("Sign in", lv.submit)

	// Enter in the password field submits.
	if pw, ok := form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		pw.SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				lv.submit()
			}
		})
	}

	inner := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(form, 9, 0, true).
		AddItem(message, 2, 0, false).
		AddItem(nil, 0, 1, false)
	lv.Flex = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(inner, 60, 0, true).
		AddItem(nil, 0, 1, false)
	lv.Flex.SetBackgroundColor(theme.BgColor)

	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Sign in" }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Sign in"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnSubmit sets the callback run when the form is submitted.
func (lv *LoginView) SetOnSubmit(fn func(email, password string)) {
	lv.onSubmit = fn
}

// SetBusy blocks resubmission while a login request is in flight.
func (lv *LoginView) SetBusy(busy bool) {
	lv.busy = busy
	if busy {
		lv.ShowMessage("Signing in...")
	}
}

// ShowMessage displays a status line under the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[::d]%s[-:-:-]", tview.Escape(msg))
}

// ShowError displays an error line under the form.
func (lv *LoginView) ShowError(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[%s]%s[-]", ui.ColorTag(lv.theme.FlashErrColor), tview.Escape(msg))
}

// Reset clears the password and message and focuses the first field.
func (lv *LoginView) Reset() {
	if pw, ok := lv.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		pw.SetText("")
	}
	lv.message.Clear()
	lv.form.SetFocus(0)
}

// Form returns the underlying form (for focus management).
func (lv *LoginView) Form() *tview.Form {
	return lv.form
}

func (lv *LoginView) submit() {
	if lv.busy || lv.onSubmit == nil {
		return
	}
	email := lv.text("Email")
	password := lv.text("Password")
	if email == "" || password == "" {
		lv.ShowError("Email and password are required")
		return
	}
	lv.onSubmit(email, password)
}

func (lv *LoginView) text(label string) string {
	if f, ok := lv.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}
