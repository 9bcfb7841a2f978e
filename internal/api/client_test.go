package api_test

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/tests/testutil"
)

func newClient(t *testing.T, srv *testutil.Server) *api.Client {
	t.Helper()
	c, err := api.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetDecodesEnvelopeData(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, map[string]string{"id": "u1", "name": "Alex"})
	})
	c := newClient(t, srv)

	var got struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "/users/me", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "u1" || got.Name != "Alex" {
		t.Errorf("decoded %+v", got)
	}
}

func TestGetRetriesOnceOnServerError(t *testing.T) {
	srv := testutil.NewServer(t)
	var calls int32
	srv.Handle(http.MethodGet, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			testutil.WriteError(w, http.StatusInternalServerError, "flaky")
			return
		}
		testutil.WriteSuccess(w, []string{})
	})
	c := newClient(t, srv)

	var got []string
	if err := c.Get(context.Background(), "/tasks", &got); err != nil {
		t.Fatalf("Get after retry: %v", err)
	}
	if n := srv.Hits(http.MethodGet, "/api/tasks"); n != 2 {
		t.Errorf("server saw %d requests, want 2", n)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/tasks/42", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusNotFound, "Task not found")
	})
	c := newClient(t, srv)

	err := c.Get(context.Background(), "/tasks/42", nil)
	if err == nil {
		t.Fatal("Get succeeded, want error")
	}
	if n := srv.Hits(http.MethodGet, "/api/tasks/42"); n != 1 {
		t.Errorf("server saw %d requests, want 1 (4xx is final)", n)
	}
}

func TestMutationsAreNeverRetried(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusInternalServerError, "down")
	})
	c := newClient(t, srv)

	if err := c.Post(context.Background(), "/tasks", map[string]string{"title": "x"}, nil); err == nil {
		t.Fatal("Post succeeded, want error")
	}
	if n := srv.Hits(http.MethodPost, "/api/tasks"); n != 1 {
		t.Errorf("server saw %d POSTs, want exactly 1", n)
	}
}

func TestErrorPrefersServerMessage(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteFieldErrors(w, http.StatusBadRequest, "Invalid credentials",
			map[string][]string{"email": {"unknown email"}})
	})
	c := newClient(t, srv)

	err := c.Post(context.Background(), "/auth/login", map[string]string{}, nil)
	if err == nil {
		t.Fatal("want error")
	}
	apiErr, ok := err.(*api.Error)
	if !ok {
		t.Fatalf("error type %T, want *api.Error", err)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q, want the server's message", apiErr.Message)
	}
	if len(apiErr.Fields["email"]) != 1 {
		t.Errorf("Fields = %v, want the email field error", apiErr.Fields)
	}
}

func TestErrorFallsBackToStatusText(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		// No envelope at all.
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newClient(t, srv)

	err := c.Get(context.Background(), "/tasks", nil)
	if err == nil {
		t.Fatal("want error")
	}
	if msg := api.ErrorMessage(err); msg != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q, want status text fallback", msg)
	}
}

func TestTransportErrorIsNormalized(t *testing.T) {
	c, err := api.NewClient("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	getErr := c.Get(context.Background(), "/tasks", nil)
	if getErr == nil {
		t.Fatal("want error against a closed port")
	}
	if _, ok := getErr.(*api.Error); !ok {
		t.Errorf("error type %T, want *api.Error", getErr)
	}
	if api.ErrorMessage(getErr) == "" {
		t.Error("normalized message is empty")
	}
}

func TestAuthLostFiresOnlyInProtectedViews(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	})
	c := newClient(t, srv)

	protected := false
	var fired int32
	c.SetAuthLostHandler(
		func() bool { return protected },
		func() { atomic.AddInt32(&fired, 1) },
	)

	// Outside the protected section: the 401 is an ordinary error.
	err := c.Get(context.Background(), "/tasks", nil)
	if !api.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("auth-loss handler fired outside the protected section")
	}

	// Inside it: the handler fires and the error still surfaces.
	protected = true
	err = c.Get(context.Background(), "/tasks", nil)
	if !api.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("handler fired %d times, want 1", fired)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	srv := testutil.NewServer(t)
	var gotID string
	srv.Handle(http.MethodGet, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		testutil.WriteSuccess(w, nil)
	})
	c := newClient(t, srv)

	if err := c.Get(context.Background(), "/tasks", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotID == "" || !strings.Contains(gotID, "-") {
		t.Errorf("X-Request-ID = %q, want a generated identifier", gotID)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		testutil.WriteSuccess(w, map[string]string{"id": "u1"})
	})
	srv.Handle(http.MethodGet, "/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil || cookie.Value != "abc" {
			testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		testutil.WriteSuccess(w, map[string]string{"id": "u1"})
	})

	c := newClient(t, srv)
	if err := c.Post(context.Background(), "/auth/login", map[string]string{}, nil); err != nil {
		t.Fatalf("login: %v", err)
	}

	saved := c.SessionCookies()
	if len(saved) == 0 {
		t.Fatal("no cookies captured after login")
	}

	// A brand-new client with the restored cookies resumes the session.
	fresh := newClient(t, srv)
	fresh.RestoreSessionCookies(saved)
	if err := fresh.Get(context.Background(), "/users/me", nil); err != nil {
		t.Fatalf("restored session rejected: %v", err)
	}
}
