// Package cache implements the client-side server-state cache: a
// keyed store of fetched API values with per-key fetch deduplication,
// a staleness window with background refresh, and hierarchical
// prefix invalidation.
//
// Keys are dot-joined hierarchies ("tasks.detail.42"); invalidating
// the "tasks" prefix marks every entry underneath it stale without
// enumerating concrete keys. The cache owns derived copies only; the
// server remains the source of truth.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fetchTimeout bounds a single fetch operation. Fetches run on a
// background context so that a caller navigating away does not cancel
// them; the result still lands in the cache for the next subscriber.
const fetchTimeout = 30 * time.Second

// DefaultStaleAfter is the staleness window applied when none is
// configured.
const DefaultStaleAfter = 5 * time.Minute

// FetchFunc loads the authoritative value for a key from the API.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Event notifies subscribers that the entry (or entries) under Key
// changed: either a fresh value arrived or the key was invalidated.
type Event struct {
	// Key is the concrete key or the invalidated prefix.
	Key string
}

// call is a single in-flight fetch shared by every concurrent reader
// of the same key.
type call struct {
	done chan struct{}
	val  interface{}
	err  error
}

// entry is one cache slot.
type entry struct {
	value     interface{}
	hasValue  bool
	err       error
	fetchedAt time.Time
	stale     bool
	inflight  *call
}

// Store is the process-wide server-state cache. All access is
// serialized per store; operations on distinct keys only contend on
// the map lock, never on each other's fetches.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	staleAfter time.Duration
	log        *zap.Logger
	events     chan Event
}

// New creates an empty cache. staleAfter <= 0 selects
// DefaultStaleAfter. A nil logger disables logging.
func New(staleAfter time.Duration, log *zap.Logger) *Store {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		entries:    make(map[string]*entry),
		staleAfter: staleAfter,
		log:        log,
		events:     make(chan Event, 16),
	}
}

// Events returns the change-notification channel. Sends are
// non-blocking; a slow consumer misses events rather than stalling
// cache writers.
func (s *Store) Events() <-chan Event {
	return s.events
}

// Get returns the value for key, fetching it with fetch when needed.
//
// At most one fetch is in flight per exact key: concurrent callers
// join the existing operation and all receive the same resolved
// value. A fresh cached value is served directly. A stale one is
// served immediately while a single background refresh runs. Fetch
// failures get exactly one automatic retry.
func (s *Store) Get(ctx context.Context, key string, fetch FetchFunc) (interface{}, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}

	if e.hasValue && !e.stale && time.Since(e.fetchedAt) < s.staleAfter {
		v := e.value
		s.mu.Unlock()
		return v, nil
	}

	if e.inflight != nil {
		if e.hasValue {
			// A refresh is already running; serve the last good
			// value without waiting for it.
			v := e.value
			s.mu.Unlock()
			return v, nil
		}
		c := e.inflight
		s.mu.Unlock()
		return waitForCall(ctx, c)
	}

	c := &call{done: make(chan struct{})}
	e.inflight = c

	if e.hasValue {
		// Stale-while-revalidate: hand back the old value now and
		// refresh silently.
		v := e.value
		s.mu.Unlock()
		go s.runFetch(key, c, fetch)
		return v, nil
	}

	s.mu.Unlock()
	go s.runFetch(key, c, fetch)
	return waitForCall(ctx, c)
}

// waitForCall blocks until the shared fetch resolves or the caller's
// context ends. The fetch itself is never cancelled by a departing
// caller.
func waitForCall(ctx context.Context, c *call) (interface{}, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runFetch executes the fetch (with the single read retry), records
// the outcome, and wakes all joined callers.
func (s *Store) runFetch(key string, c *call, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	val, err := fetch(ctx)
	if err != nil {
		s.log.Debug("fetch failed, retrying once",
			zap.String("key", key), zap.Error(err))
		val, err = fetch(ctx)
	}

	s.mu.Lock()
	if e, ok := s.entries[key]; ok && e.inflight == c {
		e.inflight = nil
		e.err = err
		if err == nil {
			e.value = val
			e.hasValue = true
			e.fetchedAt = time.Now()
			e.stale = false
		}
	}
	s.mu.Unlock()

	c.val, c.err = val, err
	close(c.done)

	if err == nil {
		s.notify(key)
	} else {
		s.log.Warn("fetch failed", zap.String("key", key), zap.Error(err))
	}
}

// Set writes a value straight into the cache (write-through from a
// mutation response or a push event), marking the entry fresh. Any
// racing fetch for the key is detached so its result cannot clobber
// the newer value.
func (s *Store) Set(key string, value interface{}) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.value = value
	e.hasValue = true
	e.err = nil
	e.fetchedAt = time.Now()
	e.stale = false
	e.inflight = nil
	s.mu.Unlock()

	s.notify(key)
}

// InvalidatePrefix marks every entry whose key is the prefix itself
// or lives underneath it ("tasks" covers "tasks.detail.42") as stale.
// Stale entries are served once more while their refresh runs.
// Invalidating twice is a no-op the second time.
func (s *Store) InvalidatePrefix(prefix string) {
	changed := false
	s.mu.Lock()
	for key, e := range s.entries {
		if key != prefix && !strings.HasPrefix(key, prefix+".") {
			continue
		}
		if !e.stale {
			e.stale = true
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify(prefix)
	}
}

// Peek returns the cached value for key without triggering a fetch.
func (s *Store) Peek(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// IsStale reports whether the entry for key is currently marked
// stale. Unknown keys report false.
func (s *Store) IsStale(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !e.hasValue {
		return false
	}
	return e.stale || time.Since(e.fetchedAt) >= s.staleAfter
}

// Err returns the last fetch error recorded for key, if any.
func (s *Store) Err(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		return e.err
	}
	return nil
}

// Clear drops every entry. Used on auth loss, where all derived state
// is abandoned wholesale.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
}

// notify sends a change event without blocking.
func (s *Store) notify(key string) {
	select {
	case s.events <- Event{Key: key}:
	default:
		// Drop if the channel is full to avoid blocking writers.
	}
}
