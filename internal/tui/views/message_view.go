package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// MessageView displays the ordered log of a single conversation.
type MessageView struct {
	*tview.TextView
	selfID string
	status func(messageID string) model.DeliveryState
}

// NewMessageView creates a new message view. status resolves the rendered
// delivery indicator for own messages.
func NewMessageView(status func(messageID string) model.DeliveryState) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv, status: status}
}

// SetSelf sets the acting user's id so own messages render as "You".
func (mv *MessageView) SetSelf(userID string) {
	mv.selfID = userID
}

// SetConversationName updates the title.
func (mv *MessageView) SetConversationName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update re-renders the view from an ordered message slice.
func (mv *MessageView) Update(msgs []model.Message) {
	mv.Clear()

	for i := range msgs {
		m := &msgs[i]
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		own := m.SenderID == mv.selfID
		if own {
			sender = "You"
		}

		ts := m.CreatedAt.Format("15:04")
		tick := ""
		if own && mv.status != nil {
			tick = " " + deliveryTick(mv.status(m.ID))
		}

		body := m.Body
		if m.Type != model.MessageText && m.Type != "" {
			body = fmt.Sprintf("[%s] %s", m.Type, m.FileURL)
		}

		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s%s[-:-:-]\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, tick,
			tview.Escape(sanitizeForTerminal(body)))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}

func deliveryTick(state model.DeliveryState) string {
	switch state {
	case model.DeliveryRead:
		return "[blue]✓✓[-]"
	case model.DeliveryDelivered:
		return "✓✓"
	default:
		return "✓"
	}
}
