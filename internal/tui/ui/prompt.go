package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode selects what the prompt line does with its text.
type PromptMode int

const (
	// PromptCommand runs a ":" command such as ":open 42".
	PromptCommand PromptMode = iota
	// PromptFilter narrows the conversation list while typing.
	PromptFilter
)

// Prompt is the one-line input shown under the header for ":" and "/".
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	commands []string
	quiet    bool // suppresses onChange while the prompt resets itself
	onSubmit func(mode PromptMode, text string)
	onChange func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates the prompt line.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetPlaceholderTextColor(theme.PendingColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
	}

	input.SetAutocompleteFunc(func(text string) []string {
		if p.mode != PromptCommand {
			return nil
		}
		return p.Complete(text)
	})
	input.SetChangedFunc(func(text string) {
		if p.onChange != nil && !p.quiet {
			p.onChange(p.mode, text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(p.GetText())
			if p.onSubmit != nil && (text != "" || p.mode == PromptFilter) {
				p.onSubmit(p.mode, text)
			}
			p.reset()
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	return p
}

func (p *Prompt) reset() {
	p.quiet = true
	p.SetText("")
	p.quiet = false
}

// SetCommands sets the command names offered for completion, in display order.
func (p *Prompt) SetCommands(names []string) {
	p.commands = names
}

// Complete returns the commands starting with the first word of text.
// Once an argument is being typed there is nothing to complete.
func (p *Prompt) Complete(text string) []string {
	if text == "" || strings.ContainsRune(text, ' ') {
		return nil
	}
	prefix := strings.ToLower(text)
	var out []string
	for _, name := range p.commands {
		if strings.HasPrefix(name, prefix) && name != prefix {
			out = append(out, name)
		}
	}
	return out
}

// SetOnSubmit sets the callback for Enter.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnChange sets the callback run on every edit.
func (p *Prompt) SetOnChange(fn func(mode PromptMode, text string)) {
	p.onChange = fn
}

// SetOnCancel sets the callback for Esc.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate clears the prompt and switches it to mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.reset()
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
		p.SetPlaceholder(strings.Join(p.commands, " | "))
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
		p.SetPlaceholder("name or message text")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}
