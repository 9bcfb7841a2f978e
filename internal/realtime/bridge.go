// Package realtime maintains the event-channel connection that keeps
// the server-state cache consistent with mutations performed by any
// client. One connection exists per authenticated session; session
// transitions drive connect and disconnect, never the other way
// around.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
)

// State is the bridge's connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String implements fmt.Stringer for logs and the status bar.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Outbound and inbound event names on the channel.
const (
	eventJoin         = "join:taskboard"
	eventLeave        = "leave:taskboard"
	eventAuthenticate = "authenticate"

	eventTaskCreated          = "task:created"
	eventTaskUpdated          = "task:updated"
	eventTaskDeleted          = "task:deleted"
	eventNotificationAssigned = "notification:assigned"
)

// frame is the wire shape of one event-channel message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Config tunes the connection policy. Zero fields select the
// defaults: 5 attempts, 1s delay, 10s timeout.
type Config struct {
	// URL is the websocket endpoint.
	URL string

	// Jar presents the session cookie during the handshake.
	Jar http.CookieJar

	// MaxReconnects bounds automatic reconnection attempts.
	MaxReconnects int

	// ReconnectDelay is the fixed pause between attempts.
	ReconnectDelay time.Duration

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration
}

// SocketURL derives a websocket endpoint from an HTTP base URL.
func SocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Bridge owns the event-channel connection and applies incoming
// events to the cache. It never crashes the host application:
// connection failures are logged and end in Disconnected.
type Bridge struct {
	cfg   Config
	store *cache.Store
	log   *zap.Logger

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc

	// wmu serializes writes; gorilla allows one concurrent writer.
	wmu sync.Mutex

	states chan State
}

// New creates a disconnected bridge writing into store.
func New(cfg Config, store *cache.Store, log *zap.Logger) *Bridge {
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		cfg:    cfg,
		store:  store,
		log:    log,
		states: make(chan State, 16),
	}
}

// States returns the state-change channel consumed by the UI for the
// connection indicator. Sends never block.
func (b *Bridge) States() <-chan State {
	return b.states
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// HandleSessionChange is registered as a session listener: the bridge
// connects exactly when the session becomes authenticated and
// disconnects exactly when it becomes unauthenticated.
func (b *Bridge) HandleSessionChange(authenticated bool, _ *model.AuthUser) {
	if authenticated {
		b.Connect()
	} else {
		b.Disconnect()
	}
}

// Connect starts the connection loop. Calling it while a loop is
// already running is a no-op.
func (b *Bridge) Connect() {
	b.mu.Lock()
	if b.cancel != nil {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	go b.run(ctx)
}

// Disconnect tears the connection down: it emits leave:taskboard,
// closes the transport, and stops the loop. Safe to call repeatedly.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	cancel := b.cancel
	conn := b.conn
	b.cancel = nil
	b.conn = nil
	b.mu.Unlock()

	if conn != nil {
		// Polite teardown so the server can unscope broadcasts.
		_ = b.writeFrame(conn, frame{Event: eventLeave})
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	b.setState(Disconnected)
}

// Authenticate emits an explicit authenticate(token) event, for
// servers that require socket-level re-auth after a reconnect.
func (b *Bridge) Authenticate(token string) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return
	}
	data, _ := json.Marshal(token)
	if err := b.writeFrame(conn, frame{Event: eventAuthenticate, Data: data}); err != nil {
		b.log.Warn("authenticate emit failed", zap.Error(err))
	}
}

// run is the connection loop: dial, join, read until failure,
// reconnect with a fixed delay up to the attempt limit. Exhausting
// the limit leaves the bridge Disconnected.
func (b *Bridge) run(ctx context.Context) {
	defer b.setState(Disconnected)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		b.setState(Connecting)

		conn, err := b.dial(ctx)
		if err != nil {
			attempts++
			b.log.Warn("event channel connect failed",
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			if attempts >= b.cfg.MaxReconnects {
				b.log.Error("event channel gave up",
					zap.Int("attempts", attempts))
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.cfg.ReconnectDelay):
			}
			continue
		}

		b.mu.Lock()
		if b.cancel == nil {
			// Disconnected while dialing.
			b.mu.Unlock()
			_ = conn.Close()
			return
		}
		b.conn = conn
		b.mu.Unlock()

		if err := b.writeFrame(conn, frame{Event: eventJoin}); err != nil {
			b.log.Warn("join emit failed", zap.Error(err))
			_ = conn.Close()
			continue
		}

		b.setState(Connected)
		b.log.Info("event channel connected", zap.String("url", b.cfg.URL))
		// A successful connection resets the attempt counter.
		attempts = 0

		b.readLoop(ctx, conn)

		b.mu.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		stopped := b.cancel == nil
		b.mu.Unlock()
		_ = conn.Close()
		if stopped || ctx.Err() != nil {
			return
		}

		attempts++
		if attempts >= b.cfg.MaxReconnects {
			b.log.Error("event channel gave up",
				zap.Int("attempts", attempts))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.cfg.ReconnectDelay):
		}
	}
}

// dial performs one bounded connection attempt.
func (b *Bridge) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: b.cfg.ConnectTimeout,
		Jar:              b.cfg.Jar,
	}
	dialCtx, cancel := context.WithTimeout(ctx, b.cfg.ConnectTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, b.cfg.URL, nil)
	return conn, err
}

// readLoop consumes frames until the transport fails or ctx ends.
// Handlers run in delivery order; no reordering or coalescing.
func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil {
				b.log.Warn("event channel read failed", zap.Error(err))
			}
			return
		}
		b.handle(f)
	}
}

// handle applies one server event to the cache. Fire-and-forget: no
// acknowledgment, and invalidation is naturally idempotent.
func (b *Bridge) handle(f frame) {
	switch f.Event {
	case eventTaskCreated:
		// A new task may affect any list or filter view.
		b.store.InvalidatePrefix(query.KeyTasks)

	case eventTaskUpdated:
		b.store.InvalidatePrefix(query.KeyTasks)
		var task model.Task
		if err := json.Unmarshal(f.Data, &task); err != nil {
			b.log.Warn("bad task:updated payload", zap.Error(err))
			return
		}
		if task.ID != "" {
			// Write-through so an open detail view updates without
			// a round trip.
			b.store.Set(query.TaskDetailKey(task.ID), &task)
		}

	case eventTaskDeleted:
		b.store.InvalidatePrefix(query.KeyTasks)

	case eventNotificationAssigned:
		b.store.InvalidatePrefix(query.KeyNotifications)

	default:
		b.log.Debug("ignoring event", zap.String("event", f.Event))
	}
}

// writeFrame sends one frame, serializing writers.
func (b *Bridge) writeFrame(conn *websocket.Conn, f frame) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	return conn.WriteJSON(f)
}

// setState records the state and notifies the UI without blocking.
func (b *Bridge) setState(s State) {
	b.mu.Lock()
	if b.state == s {
		b.mu.Unlock()
		return
	}
	b.state = s
	b.mu.Unlock()

	select {
	case b.states <- s:
	default:
	}
}
