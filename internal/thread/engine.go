package thread

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/bus"
	"github.com/pigeonmsg/pigeon/internal/model"
	"github.com/pigeonmsg/pigeon/internal/status"
)

// Remote is the slice of the remote store the engine needs. Satisfied by
// *backend.Client.
type Remote interface {
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, conversationID, senderID, body string, typ model.MessageType) (*model.Message, error)
	ActiveParticipants(ctx context.Context, conversationID string) ([]string, error)
	InsertDeliveredStatuses(ctx context.Context, messageID string, recipientIDs []string) error
}

// Feed controls the change-feed subscription for the bound conversation.
// Satisfied by *backend.Realtime.
type Feed interface {
	Subscribe(topic string) error
	Unsubscribe(topic string)
}

// Session supplies the acting identity.
type Session interface {
	Current() *model.Identity
}

// BindState is the engine's per-binding lifecycle state.
type BindState int

const (
	Unbound BindState = iota
	Loading
	Live
	Failed
)

func (s BindState) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine maintains the ordered message log of one bound conversation at a
// time: it loads history, merges pushed messages without duplication or
// reordering, and sends new messages with no optimistic insert.
//
// Every binding carries a generation number. History fetches and pushes
// resolve against the generation they were issued under; anything that
// resolves after a rebind is discarded.
type Engine struct {
	remote  Remote
	feed    Feed
	bus     *bus.Bus
	session Session
	logger  *zap.Logger
	tracker *status.Tracker

	mu     sync.Mutex
	state  BindState
	convID string
	gen    uint64
	log    []model.Message
	ids    map[string]struct{}
	cancel context.CancelFunc

	pending sync.WaitGroup
}

// NewEngine creates a message stream engine. Nothing is bound initially.
func NewEngine(remote Remote, feed Feed, b *bus.Bus, session Session, logger *zap.Logger) *Engine {
	return &Engine{
		remote:  remote,
		feed:    feed,
		bus:     b,
		session: session,
		logger:  logger,
		tracker: status.NewTracker(),
	}
}

// Bind switches the engine to conversationID: any prior binding is torn
// down, history is loaded, and a push subscription is opened. Rebinding
// the currently bound conversation tears down and recreates the binding.
func (e *Engine) Bind(ctx context.Context, conversationID string) error {
	if e.session.Current() == nil {
		return backend.ErrAuthRequired
	}

	e.mu.Lock()
	e.teardownLocked()
	e.gen++
	g := e.gen
	e.state = Loading
	e.convID = conversationID
	e.mu.Unlock()

	history, err := e.remote.Messages(ctx, conversationID)

	e.mu.Lock()
	if e.gen != g {
		// A newer Bind or Unbind won while we were loading.
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.state = Failed
		e.mu.Unlock()
		return fmt.Errorf("load history: %w", err)
	}

	e.log = make([]model.Message, 0, len(history))
	e.ids = make(map[string]struct{}, len(history))
	for i := range history {
		if _, dup := e.ids[history[i].ID]; dup {
			continue
		}
		e.ids[history[i].ID] = struct{}{}
		e.log = append(e.log, history[i])
	}
	sort.SliceStable(e.log, func(i, j int) bool { return e.log[i].Before(&e.log[j]) })
	e.state = Live

	pumpCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	msgCh, unsubMsg := e.bus.Subscribe(bus.MessageTopic(conversationID), 256)
	stCh, unsubSt := e.bus.Subscribe(bus.StatusTopic, 256)

	// Subscribed under the lock: a racing Unbind or rebind cannot slip
	// between going live and opening the feed, so teardown always sees
	// exactly the subscriptions this binding holds.
	for _, topic := range []string{backend.MessagesTopic(conversationID), backend.StatusFeedTopic} {
		if err := e.feed.Subscribe(topic); err != nil {
			// The binding stays live; the feed resubscribes on reconnect.
			e.logger.Warn("push subscription failed", zap.Error(err), zap.String("topic", topic))
		}
	}
	e.mu.Unlock()

	go e.pump(pumpCtx, g, msgCh, unsubMsg, stCh, unsubSt)
	return nil
}

// Unbind releases the binding and its push subscription. Safe to call
// multiple times.
func (e *Engine) Unbind() {
	e.mu.Lock()
	e.teardownLocked()
	e.gen++
	e.mu.Unlock()
}

// Close unbinds and waits for in-flight status writes. Called on shutdown.
func (e *Engine) Close() {
	e.Unbind()
	e.pending.Wait()
}

// Send validates and sends a message body to the bound conversation.
// Whitespace-only bodies are rejected locally without a remote call. No
// optimistic insert happens: the message appears via the response echo or
// the push subscription, whichever lands first, exactly once.
func (e *Engine) Send(ctx context.Context, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}
	id := e.session.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}

	e.mu.Lock()
	if e.state != Live {
		e.mu.Unlock()
		return fmt.Errorf("%w: no live conversation", backend.ErrValidation)
	}
	g := e.gen
	convID := e.convID
	e.mu.Unlock()

	msg, err := e.remote.CreateMessage(ctx, convID, id.ID, trimmed, model.MessageText)
	if err != nil {
		return fmt.Errorf("%w: %v", backend.ErrSendFailed, err)
	}

	// Direct response echo; the push for the same id dedupes against it.
	e.merge(g, msg)

	// Delivered rows for the other active participants, off the UI path.
	bg := context.WithoutCancel(ctx)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		participants, err := e.remote.ActiveParticipants(bg, convID)
		if err != nil {
			e.logger.Warn("participant lookup failed", zap.Error(err), zap.String("message_id", msg.ID))
			return
		}
		recipients := make([]string, 0, len(participants))
		for _, p := range participants {
			if p != id.ID {
				recipients = append(recipients, p)
			}
		}
		if err := e.remote.InsertDeliveredStatuses(bg, msg.ID, recipients); err != nil {
			e.logger.Warn("delivered status insert failed", zap.Error(err), zap.String("message_id", msg.ID))
			return
		}
		for _, r := range recipients {
			e.tracker.Observe(msg.ID, r, model.DeliveryDelivered)
		}
	}()
	return nil
}

// Messages returns a snapshot of the bound conversation's ordered log.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Message, len(e.log))
	copy(out, e.log)
	return out
}

// State returns the current binding state.
func (e *Engine) State() BindState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BoundTo returns the bound conversation id, or "".
func (e *Engine) BoundTo() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.convID
}

// DisplayStatus returns the rendered delivery status for a sent message:
// sent until a recipient's further-along status is observed, never the
// reverse.
func (e *Engine) DisplayStatus(messageID string) model.DeliveryState {
	return e.tracker.Display(messageID)
}

func (e *Engine) pump(ctx context.Context, g uint64, msgCh <-chan bus.Event, unsubMsg func(), stCh <-chan bus.Event, unsubSt func()) {
	defer unsubMsg()
	defer unsubSt()
	for {
		select {
		case evt := <-msgCh:
			if msg, ok := evt.Payload.(*model.Message); ok {
				e.merge(g, msg)
			}
		case evt := <-stCh:
			if st, ok := evt.Payload.(*model.MessageStatus); ok {
				e.observeStatus(st)
			}
		case <-ctx.Done():
			return
		}
	}
}

// merge inserts msg into the ordered log, suppressing duplicate ids and
// restoring timestamp order for out-of-order arrivals. Discards anything
// belonging to a stale generation.
func (e *Engine) merge(g uint64, msg *model.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gen != g || e.state != Live {
		return
	}
	if _, dup := e.ids[msg.ID]; dup {
		return
	}

	idx := sort.Search(len(e.log), func(i int) bool { return msg.Before(&e.log[i]) })
	e.log = append(e.log, model.Message{})
	copy(e.log[idx+1:], e.log[idx:])
	e.log[idx] = *msg
	e.ids[msg.ID] = struct{}{}
}

// observeStatus feeds a pushed status row into the tracker, but only for
// messages in the bound log.
func (e *Engine) observeStatus(st *model.MessageStatus) {
	e.mu.Lock()
	_, known := e.ids[st.MessageID]
	e.mu.Unlock()
	if !known {
		return
	}
	e.tracker.Observe(st.MessageID, st.UserID, st.Status)
}

// teardownLocked releases the current binding. Callers hold e.mu.
func (e *Engine) teardownLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.convID != "" {
		e.feed.Unsubscribe(backend.MessagesTopic(e.convID))
		e.feed.Unsubscribe(backend.StatusFeedTopic)
	}
	e.state = Unbound
	e.convID = ""
	e.log = nil
	e.ids = nil
	e.tracker.Reset()
}
