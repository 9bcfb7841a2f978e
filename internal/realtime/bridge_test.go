package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
)

// wsServer is a scriptable websocket endpoint. It records frames the
// client sends and can push frames back.
type wsServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []frame
	accepted chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{accepted: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.accepted <- conn

		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, f)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *wsServer) push(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	f := frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal push data: %v", err)
		}
		f.Data = raw
	}
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (s *wsServer) frames() []frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame, len(s.received))
	copy(out, s.received)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestBridge(srv *wsServer, store *cache.Store) *Bridge {
	return New(Config{
		URL:            srv.wsURL(),
		MaxReconnects:  3,
		ReconnectDelay: 20 * time.Millisecond,
		ConnectTimeout: time.Second,
	}, store, nil)
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:3000", "ws://localhost:3000/ws"},
		{"https://api.example.com/", "wss://api.example.com/ws"},
	}
	for _, tt := range tests {
		if got := SocketURL(tt.in); got != tt.want {
			t.Errorf("SocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionDrivesConnectionLifecycle(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)

	b.HandleSessionChange(true, &model.AuthUser{ID: "u1"})
	<-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	// The join frame announces the client to the server.
	waitFor(t, time.Second, func() bool {
		for _, f := range srv.frames() {
			if f.Event == "join:taskboard" {
				return true
			}
		}
		return false
	}, "join frame")

	b.HandleSessionChange(false, nil)
	waitFor(t, time.Second, func() bool { return b.State() == Disconnected }, "disconnected state")

	waitFor(t, time.Second, func() bool {
		for _, f := range srv.frames() {
			if f.Event == "leave:taskboard" {
				return true
			}
		}
		return false
	}, "leave frame")
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	b.Connect()
	b.Connect()
	b.Connect()

	<-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	select {
	case <-srv.accepted:
		t.Error("second connection opened by repeated Connect")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTaskEventsInvalidateCache(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	// Seed list entries that a push must invalidate.
	seed := func(key string) {
		_, _ = store.Get(context.Background(), key,
			func(ctx context.Context) (interface{}, error) { return "cached", nil })
	}
	seed("tasks.list.p=1,l=0,sb=,so=,st=,pr=")
	seed("tasks.detail.42")
	seed("users")

	b.Connect()
	conn := <-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	srv.push(t, conn, "task:created", nil)

	waitFor(t, time.Second, func() bool {
		return store.IsStale("tasks.list.p=1,l=0,sb=,so=,st=,pr=")
	}, "task list invalidation")
	if !store.IsStale("tasks.detail.42") {
		t.Error("task detail entry not invalidated")
	}
	if store.IsStale("users") {
		t.Error("unrelated users entry was invalidated")
	}
}

func TestTaskUpdatedWritesThrough(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	b.Connect()
	conn := <-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	srv.push(t, conn, "task:updated", model.Task{ID: "42", Title: "Pushed title"})

	key := query.TaskDetailKey("42")
	waitFor(t, time.Second, func() bool {
		v, ok := store.Peek(key)
		if !ok {
			return false
		}
		task, ok := v.(*model.Task)
		return ok && task.Title == "Pushed title"
	}, "write-through of pushed task")

	// The write-through entry is fresh, not stale.
	if store.IsStale(key) {
		t.Error("pushed task detail is stale")
	}
}

func TestNotificationEventInvalidatesFeed(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	_, _ = store.Get(context.Background(), "notifications.count",
		func(ctx context.Context) (interface{}, error) { return 0, nil })

	b.Connect()
	conn := <-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	srv.push(t, conn, "notification:assigned", nil)

	waitFor(t, time.Second, func() bool {
		return store.IsStale("notifications.count")
	}, "notification invalidation")
}

func TestUnknownEventsAreIgnored(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	_, _ = store.Get(context.Background(), "tasks.detail.1",
		func(ctx context.Context) (interface{}, error) { return "v", nil })

	b.Connect()
	conn := <-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "connected state")

	srv.push(t, conn, "presence:update", map[string]string{"user": "u9"})
	srv.push(t, conn, "task:created", nil)

	// The known event after the unknown one still lands, proving the
	// loop survived.
	waitFor(t, time.Second, func() bool {
		return store.IsStale("tasks.detail.1")
	}, "event after unknown event")
}

func TestGivesUpAfterMaxReconnects(t *testing.T) {
	store := cache.New(time.Minute, nil)
	// Nothing listens here.
	b := New(Config{
		URL:            "ws://127.0.0.1:1/ws",
		MaxReconnects:  2,
		ReconnectDelay: 10 * time.Millisecond,
		ConnectTimeout: 200 * time.Millisecond,
	}, store, nil)

	b.Connect()
	waitFor(t, time.Second, func() bool { return b.State() == Connecting }, "first attempt")
	waitFor(t, 5*time.Second, func() bool { return b.State() == Disconnected }, "gave up")

	// And it stays down without a new Connect.
	time.Sleep(50 * time.Millisecond)
	if b.State() != Disconnected {
		t.Errorf("state = %v after giving up, want Disconnected", b.State())
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	srv := newWSServer(t)
	store := cache.New(time.Minute, nil)
	b := newTestBridge(srv, store)
	defer b.Disconnect()

	b.Connect()
	conn := <-srv.accepted
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "first connection")

	_ = conn.Close()

	// A fresh connection arrives and the bridge settles Connected again.
	select {
	case <-srv.accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnection after server drop")
	}
	waitFor(t, time.Second, func() bool { return b.State() == Connected }, "reconnected state")
}
