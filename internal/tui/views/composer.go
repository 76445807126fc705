package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pigeonmsg/pigeon/internal/tui/ui"
)

// Composer is the single-line input below the message view. Enter submits;
// surrounding whitespace never reaches the send path.
type Composer struct {
	*tview.InputField
	onSend func(text string)
}

// NewComposer creates the message composer.
func NewComposer(theme *ui.Theme) *Composer {
	field := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("type a message").
		SetLabelColor(theme.TitleColor).
		SetFieldBackgroundColor(theme.BgColor).
		SetFieldTextColor(theme.FgColor).
		SetPlaceholderTextColor(theme.MutedColor)

	c := &Composer{InputField: field}

	field.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(c.GetText())
		c.SetText("")
		if text != "" && c.onSend != nil {
			c.onSend(text)
		}
	})

	return c
}

// SetOnSend registers the submit handler.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}
