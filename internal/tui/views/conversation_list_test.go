package views

import (
	"testing"
	"time"

	"github.com/pigeonmsg/pigeon/internal/model"
	"github.com/pigeonmsg/pigeon/internal/tui/ui"
)

func sampleConversations() []model.Conversation {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Conversation{
		{ID: "c1", Peer: &model.Peer{ID: "u1", DisplayName: "Anna"}, LastMessage: "see you there", LastMessageAt: at},
		{ID: "c2", Peer: &model.Peer{ID: "u2", DisplayName: "Bruno"}, LastMessage: "lunch tomorrow?", LastMessageAt: at.Add(-time.Hour)},
		{ID: "c3", Name: "weekend plans", IsGroup: true, LastMessage: "who is in", LastMessageAt: at.Add(-2 * time.Hour)},
	}
}

func TestFilterNarrowsVisibleRows(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(sampleConversations())

	cl.SetFilter("bruno")

	if got := cl.ConversationByIndex(1); got != "c2" {
		t.Fatalf("first visible conversation = %q, want c2", got)
	}
	if got := cl.ConversationByIndex(2); got != "" {
		t.Fatalf("second visible conversation = %q, want none", got)
	}
}

func TestFilterMatchesLastMessage(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(sampleConversations())

	cl.SetFilter("lunch")

	if got := cl.ConversationByIndex(1); got != "c2" {
		t.Fatalf("first visible conversation = %q, want c2", got)
	}
}

func TestClearFilterRestoresAllRows(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme())
	cl.Update(sampleConversations())

	cl.SetFilter("weekend")
	cl.ClearFilter()

	want := []string{"c1", "c2", "c3"}
	for i, id := range want {
		if got := cl.ConversationByIndex(i + 1); got != id {
			t.Fatalf("visible[%d] = %q, want %q", i, got, id)
		}
	}
}
