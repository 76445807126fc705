package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// FilterPrompt is the inline input bar for narrowing the conversation
// list. It stays hidden until activated; the filter applies on every
// keystroke rather than on submit.
type FilterPrompt struct {
	*tview.InputField
	onChange func(text string)
	onDone   func(accepted bool)
}

// NewFilterPrompt creates the filter bar.
func NewFilterPrompt(theme *Theme) *FilterPrompt {
	input := tview.NewInputField().SetLabel("/")
	input.SetBorder(true)
	input.SetTitle(" Filter ")
	input.SetTitleColor(theme.TitleColor)
	input.SetBorderColor(theme.BorderFocusColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.UnreadColor)

	p := &FilterPrompt{InputField: input}

	input.SetChangedFunc(func(text string) {
		if p.onChange != nil {
			p.onChange(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if p.onDone != nil {
				p.onDone(true)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onDone != nil {
				p.onDone(false)
			}
		}
	})

	return p
}

// SetOnChange registers the per-keystroke handler.
func (p *FilterPrompt) SetOnChange(fn func(text string)) {
	p.onChange = fn
}

// SetOnDone registers the close handler; accepted is false on escape.
func (p *FilterPrompt) SetOnDone(fn func(accepted bool)) {
	p.onDone = fn
}

// Reset clears the input text.
func (p *FilterPrompt) Reset() {
	p.SetText("")
}
