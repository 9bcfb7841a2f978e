// Package sync provides the notification polling fallback: a fixed
// interval refresh of the notification feed and unread count so the
// badge stays current even when the event channel is down.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/query"
)

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// RefreshedMsg is a tea.Msg sent after each polling cycle with the
// latest unread count.
type RefreshedMsg struct {
	UnreadCount int
	Err         error
}

// Poller periodically invalidates the notification keys and re-reads
// the unread count. It only runs while a session is authenticated;
// the app starts and stops it alongside the real-time bridge.
type Poller struct {
	queries  *query.Queries
	log      *zap.Logger
	interval time.Duration

	resultCh  chan RefreshedMsg
	triggerCh chan struct{}

	mu      gosync.Mutex
	stopCh  chan struct{}
	running bool
}

// New creates a poller over the given query surface. interval <= 0
// selects the 30s default.
func New(q *query.Queries, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		queries:   q,
		log:       log,
		interval:  interval,
		resultCh:  make(chan RefreshedMsg, 16),
		triggerCh: make(chan struct{}, 16),
	}
}

// Start begins polling and returns a command that waits for the first
// result. Starting a running poller is a no-op.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	go p.loop(stopCh)

	return p.waitForResult()
}

// Stop halts polling. The poller can be started again after a
// re-login.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
}

// Refresh triggers an immediate cycle without waiting for the ticker.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// Channel full; a cycle is already pending.
	}
	return nil
}

// WaitForNextResult returns a command that waits for the next cycle's
// result. Call it after processing a RefreshedMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

func (p *Poller) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Do an initial refresh immediately.
	p.refreshOnce()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			p.refreshOnce()
		case <-p.triggerCh:
			p.refreshOnce()
		}
	}
}

// refreshOnce invalidates the notification keys and re-reads the
// unread count so the badge updates within one cycle.
func (p *Poller) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	p.queries.Cache().InvalidatePrefix(query.KeyNotifications)

	count, err := p.queries.UnreadCount(ctx)
	if err != nil {
		p.log.Debug("notification refresh failed", zap.Error(err))
	}
	p.sendResult(RefreshedMsg{UnreadCount: count, Err: err})
}

// sendResult delivers a result without blocking the polling loop.
func (p *Poller) sendResult(msg RefreshedMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if the channel is full.
	}
}

// waitForResult returns a command that blocks on the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}
