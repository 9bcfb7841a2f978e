package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fetchValue(v interface{}) FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		return v, nil
	}
}

func TestGetFetchesOnce(t *testing.T) {
	s := New(time.Minute, nil)

	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	for i := 0; i < 3; i++ {
		got, err := s.Get(context.Background(), "tasks.detail.1", fetch)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != "v1" {
			t.Fatalf("Get = %v, want v1", got)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}
}

func TestConcurrentGetDeduplicates(t *testing.T) {
	s := New(time.Minute, nil)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const readers = 10
	results := make([]interface{}, readers)
	errs := make([]error, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Get(context.Background(), "tasks.list.a", fetch)
		}(i)
	}

	<-started
	// All readers are either blocked on the shared call or about to
	// join it; let the single fetch resolve.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < readers; i++ {
		if errs[i] != nil {
			t.Fatalf("reader %d: %v", i, errs[i])
		}
		if results[i] != 42 {
			t.Fatalf("reader %d got %v, want 42", i, results[i])
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("fetch ran %d times for %d concurrent readers, want 1", n, readers)
	}
}

func TestDistinctKeysFetchIndependently(t *testing.T) {
	s := New(time.Minute, nil)

	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	a, _ := s.Get(context.Background(), "tasks.list.a", fetch)
	b, _ := s.Get(context.Background(), "tasks.list.b", fetch)
	if a == b {
		t.Errorf("distinct keys shared one fetch: %v == %v", a, b)
	}
}

func TestStaleServedWhileRevalidating(t *testing.T) {
	s := New(time.Minute, nil)
	key := "notifications.list.false"

	if _, err := s.Get(context.Background(), key, fetchValue("old")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.InvalidatePrefix("notifications")

	if !s.IsStale(key) {
		t.Fatal("entry not stale after invalidation")
	}

	refreshed := make(chan struct{})
	got, err := s.Get(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		defer close(refreshed)
		return "new", nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "old" {
		t.Errorf("stale read = %v, want old value served immediately", got)
	}

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("background refresh never ran")
	}

	// The refresh result lands for the next reader.
	deadline := time.Now().Add(time.Second)
	for {
		v, ok := s.Peek(key)
		if ok && v == "new" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache still holds %v, want new", v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInvalidatePrefixMatchesSegments(t *testing.T) {
	s := New(time.Minute, nil)
	ctx := context.Background()

	seed := []string{"tasks", "tasks.list.a", "tasks.detail.42", "taskssomethingelse", "users"}
	for _, key := range seed {
		if _, err := s.Get(ctx, key, fetchValue(key)); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}

	s.InvalidatePrefix("tasks")

	tests := []struct {
		key  string
		want bool
	}{
		{"tasks", true},
		{"tasks.list.a", true},
		{"tasks.detail.42", true},
		{"taskssomethingelse", false},
		{"users", false},
	}
	for _, tt := range tests {
		if got := s.IsStale(tt.key); got != tt.want {
			t.Errorf("IsStale(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	s := New(time.Minute, nil)
	ctx := context.Background()

	if _, err := s.Get(ctx, "tasks.list.a", fetchValue("v")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s.InvalidatePrefix("tasks")
	drainEvents(s)
	s.InvalidatePrefix("tasks")

	select {
	case ev := <-s.Events():
		t.Errorf("second invalidation emitted event %+v, want none", ev)
	default:
	}
	if !s.IsStale("tasks.list.a") {
		t.Error("entry lost staleness on repeat invalidation")
	}
}

func TestSetWritesThroughAndMarksFresh(t *testing.T) {
	s := New(time.Minute, nil)
	key := "tasks.detail.42"

	s.Set(key, "written")

	var fetched int32
	got, err := s.Get(context.Background(), key, func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&fetched, 1)
		return "fetched", nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "written" {
		t.Errorf("Get = %v, want written value without a fetch", got)
	}
	if n := atomic.LoadInt32(&fetched); n != 0 {
		t.Errorf("fetch ran %d times after Set, want 0", n)
	}
}

func TestSetDetachesRacingFetch(t *testing.T) {
	s := New(time.Minute, nil)
	key := "tasks.detail.42"

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Get(context.Background(), key, func(ctx context.Context) (interface{}, error) {
			<-release
			return "slow-fetch", nil
		})
	}()

	// Let the fetch start, then land a newer value via write-through.
	time.Sleep(20 * time.Millisecond)
	s.Set(key, "newer")
	close(release)
	<-done

	// The slow fetch result must not clobber the newer value.
	time.Sleep(20 * time.Millisecond)
	if v, _ := s.Peek(key); v != "newer" {
		t.Errorf("cache holds %v, want newer", v)
	}
}

func TestFetchErrorRetriesOnce(t *testing.T) {
	s := New(time.Minute, nil)

	var calls int32
	wantErr := errors.New("boom")
	_, err := s.Get(context.Background(), "tasks.list.a", func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, wantErr
	})
	if err == nil {
		t.Fatal("Get succeeded, want error")
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("fetch ran %d times, want 2 (one retry)", n)
	}
	if s.Err("tasks.list.a") == nil {
		t.Error("error not recorded on the entry")
	}
}

func TestFetchRecoversAfterError(t *testing.T) {
	s := New(time.Minute, nil)
	key := "tasks.list.a"

	var calls int32
	fetch := func(ctx context.Context) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, errors.New("down")
		}
		return "up", nil
	}

	if _, err := s.Get(context.Background(), key, fetch); err == nil {
		t.Fatal("first Get succeeded, want error")
	}
	got, err := s.Get(context.Background(), key, fetch)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got != "up" {
		t.Errorf("second Get = %v, want up", got)
	}
	if s.Err(key) != nil {
		t.Errorf("error still recorded after recovery: %v", s.Err(key))
	}
}

func TestClearDropsEverything(t *testing.T) {
	s := New(time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("tasks.detail.%d", i)
		if _, err := s.Get(ctx, key, fetchValue(i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	s.Clear()

	for i := 0; i < 5; i++ {
		if _, ok := s.Peek(fmt.Sprintf("tasks.detail.%d", i)); ok {
			t.Fatalf("entry %d survived Clear", i)
		}
	}
}

func TestEventsEmittedOnWrite(t *testing.T) {
	s := New(time.Minute, nil)

	s.Set("tasks.detail.42", "v")

	select {
	case ev := <-s.Events():
		if ev.Key != "tasks.detail.42" {
			t.Errorf("event key = %q, want tasks.detail.42", ev.Key)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after Set")
	}
}

func drainEvents(s *Store) {
	for {
		select {
		case <-s.Events():
		default:
			return
		}
	}
}
