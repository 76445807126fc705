package status

import (
	"fmt"
	"sync"

	"github.com/pigeonmsg/pigeon/internal/model"
)

// rank orders delivery states. Transitions are monotonically
// non-decreasing per (message, recipient) pair: a read message never
// regresses to delivered, a delivered one never regresses to sent.
var rank = map[model.DeliveryState]int{
	model.DeliverySent:      0,
	model.DeliveryDelivered: 1,
	model.DeliveryRead:      2,
}

// Valid reports whether s is a known delivery state.
func Valid(s model.DeliveryState) bool {
	_, ok := rank[s]
	return ok
}

// Advance returns the state resulting from observing next after cur.
// Backward observations are ignored (cur wins); unknown states are an
// error.
func Advance(cur, next model.DeliveryState) (model.DeliveryState, error) {
	curRank, ok := rank[cur]
	if !ok {
		return cur, fmt.Errorf("unknown delivery state %q", cur)
	}
	nextRank, ok := rank[next]
	if !ok {
		return cur, fmt.Errorf("unknown delivery state %q", next)
	}
	if nextRank > curRank {
		return next, nil
	}
	return cur, nil
}

type key struct {
	messageID string
	userID    string
}

// Tracker accumulates per-recipient delivery observations and derives the
// display status the sender's view renders: sent until some recipient's
// further-along status is observed, never downgraded.
type Tracker struct {
	mu      sync.RWMutex
	states  map[key]model.DeliveryState
	display map[string]model.DeliveryState
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states:  make(map[key]model.DeliveryState),
		display: make(map[string]model.DeliveryState),
	}
}

// Observe records a delivery status for one (message, recipient) pair.
// Returns true if the observation advanced the pair's state.
func (t *Tracker) Observe(messageID, userID string, s model.DeliveryState) bool {
	if !Valid(s) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{messageID: messageID, userID: userID}
	cur, seen := t.states[k]
	if !seen {
		cur = model.DeliverySent
	}
	next, _ := Advance(cur, s)
	t.states[k] = next

	if disp, ok := t.display[messageID]; !ok || rank[next] > rank[disp] {
		t.display[messageID] = next
	}
	return !seen || rank[next] > rank[cur]
}

// Display returns the rendered status for a message: the furthest-along
// state observed across its recipients, defaulting to sent.
func (t *Tracker) Display(messageID string) model.DeliveryState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.display[messageID]; ok {
		return s
	}
	return model.DeliverySent
}

// Reset discards all observations. Used when the bound conversation
// changes; statuses are projections, re-derived from pushes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.states = make(map[key]model.DeliveryState)
	t.display = make(map[string]model.DeliveryState)
	t.mu.Unlock()
}
