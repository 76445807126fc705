package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/pigeonmsg/pigeon/internal/bus"
)

// Realtime is the push half of the remote store: a websocket change-feed
// carrying row-change notifications per topic. Decoded events are
// republished on the in-process bus; engines never touch the socket.
//
// Only one live subscription may exist per topic; Subscribe on an already
// subscribed topic is a no-op.
type Realtime struct {
	wsURL  string
	apiKey string
	client *Client
	bus    *bus.Bus
	logger *zap.Logger

	mu     sync.Mutex
	topics map[string]struct{}
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// MessagesTopic is the change-feed topic for one conversation's messages.
func MessagesTopic(conversationID string) string {
	return "messages:conversation_id=eq." + conversationID
}

// StatusFeedTopic is the change-feed topic for message_status rows.
const StatusFeedTopic = "message_status"

// NewRealtime creates a change-feed client. The REST client is used to
// hydrate bare message rows with their sender profile.
func NewRealtime(baseURL, apiKey string, client *Client, b *bus.Bus, logger *zap.Logger) *Realtime {
	ws := strings.TrimRight(baseURL, "/")
	ws = strings.Replace(ws, "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return &Realtime{
		wsURL:  ws + "/realtime/v1/websocket?apikey=" + apiKey,
		apiKey: apiKey,
		client: client,
		bus:    b,
		logger: logger,
		topics: make(map[string]struct{}),
	}
}

// Start opens the feed and keeps it open until Stop, reconnecting with
// capped exponential backoff and resubscribing active topics.
func (r *Realtime) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
}

// Stop tears the connection down. Safe to call more than once.
func (r *Realtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
}

// Subscribe opens a change subscription for topic. Events arrive on the
// bus, not on a return value; Unsubscribe guarantees no further delivery.
func (r *Realtime) Subscribe(topic string) error {
	r.mu.Lock()
	if _, ok := r.topics[topic]; ok {
		r.mu.Unlock()
		return nil
	}
	r.topics[topic] = struct{}{}
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		// Not connected yet; the topic is replayed after (re)connect.
		return nil
	}
	return r.writeFrame(conn, frame{Action: "subscribe", Topic: topic})
}

// Unsubscribe closes the subscription for topic. Idempotent.
func (r *Realtime) Unsubscribe(topic string) {
	r.mu.Lock()
	if _, ok := r.topics[topic]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.topics, topic)
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		_ = r.writeFrame(conn, frame{Action: "unsubscribe", Topic: topic})
	}
}

type frame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type changeEvent struct {
	Topic  string          `json:"topic"`
	Event  string          `json:"event"`
	Table  string          `json:"table"`
	Record json.RawMessage `json:"record"`
}

func (r *Realtime) run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry until Stop

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := r.dial(ctx)
		if err != nil {
			r.logger.Warn("realtime dial failed", zap.Error(err))
		} else {
			bo.Reset()
			r.bus.Publish(bus.Event{Topic: bus.ConnectionTopic, Timestamp: time.Now(), Payload: true})
			r.readLoop(ctx, conn)
			r.bus.Publish(bus.Event{Topic: bus.ConnectionTopic, Timestamp: time.Now(), Payload: false})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
	}
}

func (r *Realtime) dial(ctx context.Context) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
	if t := r.client.Token(); t != nil {
		opts.HTTPHeader.Set("Authorization", "Bearer "+t.AccessToken)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, r.wsURL, opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.conn = conn
	topics := make([]string, 0, len(r.topics))
	for t := range r.topics {
		topics = append(topics, t)
	}
	r.mu.Unlock()

	for _, t := range topics {
		if err := r.writeFrame(conn, frame{Action: "subscribe", Topic: t}); err != nil {
			_ = conn.Close(websocket.StatusInternalError, "resubscribe failed")
			return nil, err
		}
	}
	return conn, nil
}

func (r *Realtime) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var evt changeEvent
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("realtime read failed", zap.Error(err))
			}
			return
		}
		r.dispatch(ctx, evt)
	}
}

func (r *Realtime) dispatch(ctx context.Context, evt changeEvent) {
	switch evt.Table {
	case "messages":
		var row messageRow
		if err := json.Unmarshal(evt.Record, &row); err != nil {
			r.logger.Warn("realtime: bad message record", zap.Error(err))
			return
		}
		msg, err := row.toModel()
		if err != nil {
			r.logger.Warn("realtime: invalid message row", zap.Error(err))
			return
		}
		// The feed carries the bare row; refetch with the sender embedded
		// so views render display names. Fall back to the bare row.
		if hydrated, err := r.client.MessageByID(ctx, msg.ID); err == nil {
			msg = *hydrated
		}
		r.bus.Publish(bus.Event{
			Topic:     bus.MessageTopic(msg.ConversationID),
			Timestamp: time.Now(),
			Payload:   &msg,
		})
	case "message_status":
		var row statusRow
		if err := json.Unmarshal(evt.Record, &row); err != nil {
			r.logger.Warn("realtime: bad status record", zap.Error(err))
			return
		}
		st, err := row.toModel()
		if err != nil {
			r.logger.Warn("realtime: invalid status row", zap.Error(err))
			return
		}
		r.bus.Publish(bus.Event{
			Topic:     bus.StatusTopic,
			Timestamp: time.Now(),
			Payload:   &st,
		})
	}
}

func (r *Realtime) writeFrame(conn *websocket.Conn, f frame) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}
