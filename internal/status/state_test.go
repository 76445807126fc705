package status

import (
	"testing"

	"github.com/pigeonmsg/pigeon/internal/model"
)

func TestAdvanceForwardOnly(t *testing.T) {
	tests := []struct {
		cur, next, want model.DeliveryState
	}{
		{model.DeliverySent, model.DeliveryDelivered, model.DeliveryDelivered},
		{model.DeliverySent, model.DeliveryRead, model.DeliveryRead},
		{model.DeliveryDelivered, model.DeliveryRead, model.DeliveryRead},
		// Backward observations are ignored, never applied.
		{model.DeliveryRead, model.DeliveryDelivered, model.DeliveryRead},
		{model.DeliveryRead, model.DeliverySent, model.DeliveryRead},
		{model.DeliveryDelivered, model.DeliverySent, model.DeliveryDelivered},
		// Same state is a no-op.
		{model.DeliveryRead, model.DeliveryRead, model.DeliveryRead},
	}
	for _, tt := range tests {
		got, err := Advance(tt.cur, tt.next)
		if err != nil {
			t.Errorf("Advance(%s, %s) error: %v", tt.cur, tt.next, err)
		}
		if got != tt.want {
			t.Errorf("Advance(%s, %s) = %s, want %s", tt.cur, tt.next, got, tt.want)
		}
	}
}

func TestAdvanceUnknownState(t *testing.T) {
	if _, err := Advance(model.DeliverySent, "bogus"); err == nil {
		t.Error("expected error for unknown next state")
	}
	if _, err := Advance("bogus", model.DeliveryRead); err == nil {
		t.Error("expected error for unknown current state")
	}
}

func TestTrackerDisplayUpgrades(t *testing.T) {
	tr := NewTracker()

	if got := tr.Display("m1"); got != model.DeliverySent {
		t.Errorf("initial display = %s, want sent", got)
	}

	tr.Observe("m1", "u2", model.DeliveryDelivered)
	if got := tr.Display("m1"); got != model.DeliveryDelivered {
		t.Errorf("display = %s, want delivered", got)
	}

	tr.Observe("m1", "u2", model.DeliveryRead)
	if got := tr.Display("m1"); got != model.DeliveryRead {
		t.Errorf("display = %s, want read", got)
	}

	// A later backward observation must never downgrade the display.
	tr.Observe("m1", "u2", model.DeliveryDelivered)
	tr.Observe("m1", "u3", model.DeliverySent)
	if got := tr.Display("m1"); got != model.DeliveryRead {
		t.Errorf("display after regression attempts = %s, want read", got)
	}
}

func TestTrackerPerRecipientIsolation(t *testing.T) {
	tr := NewTracker()
	tr.Observe("m1", "u2", model.DeliveryRead)
	tr.Observe("m2", "u2", model.DeliveryDelivered)

	if got := tr.Display("m2"); got != model.DeliveryDelivered {
		t.Errorf("m2 display = %s, want delivered", got)
	}
}

func TestTrackerIgnoresInvalidState(t *testing.T) {
	tr := NewTracker()
	if tr.Observe("m1", "u2", "bogus") {
		t.Error("invalid state should not register")
	}
	if got := tr.Display("m1"); got != model.DeliverySent {
		t.Errorf("display = %s, want sent", got)
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Observe("m1", "u2", model.DeliveryRead)
	tr.Reset()
	if got := tr.Display("m1"); got != model.DeliverySent {
		t.Errorf("display after reset = %s, want sent", got)
	}
}
