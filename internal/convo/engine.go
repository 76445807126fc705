package convo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/backend"
	"github.com/pigeonmsg/pigeon/internal/bus"
	"github.com/pigeonmsg/pigeon/internal/model"
)

// Remote is the slice of the remote store the engine needs. Satisfied by
// *backend.Client.
type Remote interface {
	UserConversations(ctx context.Context) ([]model.Conversation, error)
	NonGroupConversationIDs(ctx context.Context, userID string) ([]string, error)
	ActiveParticipants(ctx context.Context, conversationID string) ([]string, error)
	CreateConversation(ctx context.Context, creatorID string) (*model.Conversation, error)
	AddParticipants(ctx context.Context, conversationID string, userIDs []string) error
	UnreadMessageIDs(ctx context.Context, conversationID, userID string) ([]string, error)
	MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) error
}

// Session supplies the acting identity.
type Session interface {
	Current() *model.Identity
}

// Engine keeps the conversation list locally current: it loads the
// denormalized list from the remote store and folds in new-message and
// read-state events as they arrive. It never calls the message stream
// engine; both derive state from the remote store independently.
type Engine struct {
	remote  Remote
	session Session
	bus     *bus.Bus
	logger  *zap.Logger

	mu    sync.RWMutex
	convs []model.Conversation

	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// NewEngine creates a conversation sync engine.
func NewEngine(remote Remote, session Session, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		remote:  remote,
		session: session,
		bus:     b,
		logger:  logger,
	}
}

// Load fetches the conversation list, ordered by last-message time
// descending. On failure the previous snapshot is retained and returned
// alongside the error; callers surface the error without clearing state.
func (e *Engine) Load(ctx context.Context) ([]model.Conversation, error) {
	if e.session.Current() == nil {
		return e.Conversations(), backend.ErrAuthRequired
	}

	convs, err := e.remote.UserConversations(ctx)
	if err != nil {
		return e.Conversations(), fmt.Errorf("load conversations: %w", err)
	}

	sortByRecency(convs)

	e.mu.Lock()
	e.convs = convs
	e.mu.Unlock()

	return e.Conversations(), nil
}

// Conversations returns a snapshot of the current list.
func (e *Engine) Conversations() []model.Conversation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.Conversation, len(e.convs))
	copy(out, e.convs)
	return out
}

// MarkRead clears the local unread count immediately, then issues read
// status updates for every unread message in the background. The local
// clear is not rolled back on remote failure; the count converges on the
// next Load.
func (e *Engine) MarkRead(ctx context.Context, conversationID string) error {
	id := e.session.Current()
	if id == nil {
		return backend.ErrAuthRequired
	}

	e.mu.Lock()
	for i := range e.convs {
		if e.convs[i].ID == conversationID {
			e.convs[i].UnreadCount = 0
			break
		}
	}
	e.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ids, err := e.remote.UnreadMessageIDs(bg, conversationID, id.ID)
		if err != nil {
			e.logger.Warn("unread lookup failed", zap.Error(err), zap.String("conversation_id", conversationID))
			return
		}
		if err := e.remote.MarkMessagesRead(bg, ids, id.ID); err != nil {
			e.logger.Warn("mark read failed", zap.Error(err), zap.String("conversation_id", conversationID))
		}
	}()
	return nil
}

// CreatePrivate returns the active two-party conversation with peerID,
// creating it if none exists. Idempotent at the data level: calling it
// twice for the same peer yields the same conversation id.
func (e *Engine) CreatePrivate(ctx context.Context, peerID string) (*model.Conversation, error) {
	id := e.session.Current()
	if id == nil {
		return nil, backend.ErrAuthRequired
	}
	if peerID == "" || peerID == id.ID {
		return nil, fmt.Errorf("%w: invalid peer", backend.ErrValidation)
	}

	if conv, err := e.findExisting(ctx, id.ID, peerID); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}

	conv, err := e.remote.CreateConversation(ctx, id.ID)
	if err != nil {
		// Lost a creation race: the winner's row satisfies the contract.
		if errors.Is(err, backend.ErrDuplicate) {
			if existing, ferr := e.findExisting(ctx, id.ID, peerID); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	if err := e.remote.AddParticipants(ctx, conv.ID, []string{id.ID, peerID}); err != nil {
		return nil, fmt.Errorf("add participants: %w", err)
	}
	return conv, nil
}

// findExisting scans the acting identity's non-group conversations,
// re-verifying each candidate's active participant set for exact
// two-member equality with {self, peer}. The re-verification guards
// against accidental group matches and stale participant rows.
func (e *Engine) findExisting(ctx context.Context, selfID, peerID string) (*model.Conversation, error) {
	ids, err := e.remote.NonGroupConversationIDs(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}
	for _, convID := range ids {
		participants, err := e.remote.ActiveParticipants(ctx, convID)
		if err != nil {
			return nil, fmt.Errorf("verify participants: %w", err)
		}
		if len(participants) != 2 {
			continue
		}
		if containsBoth(participants, selfID, peerID) {
			if conv := e.lookup(convID); conv != nil {
				return conv, nil
			}
			return &model.Conversation{ID: convID}, nil
		}
	}
	return nil, nil
}

// containsBoth reports whether list includes both a and b.
func containsBoth(list []string, a, b string) bool {
	var hasA, hasB bool
	for _, v := range list {
		if v == a {
			hasA = true
		}
		if v == b {
			hasB = true
		}
	}
	return hasA && hasB
}

// Start subscribes to pushed message and identity events so the list
// stays current between explicit loads.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	msgCh, unsubMsg := e.bus.Subscribe(bus.MessagePrefix, 256)
	idCh, unsubID := e.bus.Subscribe(bus.IdentityTopic, 4)

	go func() {
		defer unsubMsg()
		defer unsubID()
		for {
			select {
			case evt := <-msgCh:
				if msg, ok := evt.Payload.(*model.Message); ok {
					e.applyMessage(ctx, msg)
				}
			case evt := <-idCh:
				if id, ok := evt.Payload.(*model.Identity); !ok || id == nil {
					e.clear()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the event loop and waits for in-flight read updates.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.pending.Wait()
}

// applyMessage folds one pushed message into the list: bump the preview,
// advance the recency ordering, and count it unread unless we sent it.
func (e *Engine) applyMessage(ctx context.Context, msg *model.Message) {
	self := ""
	if id := e.session.Current(); id != nil {
		self = id.ID
	}

	e.mu.Lock()
	found := false
	for i := range e.convs {
		if e.convs[i].ID != msg.ConversationID {
			continue
		}
		found = true
		if msg.CreatedAt.After(e.convs[i].LastMessageAt) {
			e.convs[i].LastMessage = preview(msg)
			e.convs[i].LastMessageAt = msg.CreatedAt
		}
		if msg.SenderID != self {
			e.convs[i].UnreadCount++
		}
		break
	}
	if found {
		sortByRecency(e.convs)
	}
	e.mu.Unlock()

	if !found {
		// A message for a conversation we have never seen: someone opened
		// a new conversation with us. Refresh the whole list.
		if _, err := e.Load(ctx); err != nil {
			e.logger.Warn("list refresh after unknown conversation failed", zap.Error(err))
		}
	}
}

func (e *Engine) clear() {
	e.mu.Lock()
	e.convs = nil
	e.mu.Unlock()
}

func (e *Engine) lookup(conversationID string) *model.Conversation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.convs {
		if e.convs[i].ID == conversationID {
			conv := e.convs[i]
			return &conv
		}
	}
	return nil
}

func sortByRecency(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})
}

func preview(msg *model.Message) string {
	if msg.Type != model.MessageText && msg.Type != "" {
		return "[" + string(msg.Type) + "]"
	}
	return truncate(msg.Body, 100)
}

// truncate shortens s to at most max runes. Cutting on a rune boundary
// keeps multibyte previews valid UTF-8.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
