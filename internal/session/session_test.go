package session_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/tests/testutil"
)

func newManager(t *testing.T, srv *testutil.Server) *session.Manager {
	t.Helper()
	client, err := api.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return session.New(client, nil)
}

func handleLogin(srv *testutil.Server) {
	srv.Handle(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, model.AuthUser{ID: "u1", Email: "a@example.com", Name: "Alex"})
	})
}

func TestLoginPopulatesIdentity(t *testing.T) {
	srv := testutil.NewServer(t)
	handleLogin(srv)
	m := newManager(t, srv)

	if m.IsAuthenticated() {
		t.Fatal("fresh manager reports authenticated")
	}

	if err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if !m.IsAuthenticated() {
		t.Fatal("not authenticated after login")
	}
	user := m.User()
	if user == nil || user.Name != "Alex" {
		t.Errorf("User = %+v, want Alex from the response body", user)
	}
	// Identity came from the login response, no extra profile call.
	if n := srv.Hits(http.MethodGet, "/api/users/profile"); n != 0 {
		t.Errorf("profile endpoint hit %d times, want 0", n)
	}
}

func TestLoginFailureReturnsNormalizedMessage(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	})
	m := newManager(t, srv)

	err := m.Login(context.Background(), "a@example.com", "wrong")
	if err == nil {
		t.Fatal("Login succeeded, want error")
	}
	if err.Error() != "Invalid email or password" {
		t.Errorf("err = %q, want the server message verbatim", err.Error())
	}
	if m.IsAuthenticated() {
		t.Error("authenticated after failed login")
	}
}

func TestListenersFireOnTransitionsOnly(t *testing.T) {
	srv := testutil.NewServer(t)
	handleLogin(srv)
	srv.Handle(http.MethodPost, "/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	srv.Handle(http.MethodGet, "/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, model.AuthUser{ID: "u1", Name: "Alex Renamed"})
	})
	m := newManager(t, srv)

	type transition struct {
		authenticated bool
	}
	var seen []transition
	m.OnChange(func(authenticated bool, _ *model.AuthUser) {
		seen = append(seen, transition{authenticated})
	})

	ctx := context.Background()
	if err := m.Login(ctx, "a@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	// Refresh keeps the authenticated state; no flip, no callback.
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	want := []transition{{true}, {false}}
	if len(seen) != len(want) {
		t.Fatalf("listener fired %d times (%v), want %d", len(seen), seen, len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

func TestVerifyOTPEstablishesSession(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, model.AuthUser{ID: "u2", Email: "n@example.com", IsVerified: true})
	})
	m := newManager(t, srv)

	if err := m.VerifyOTP(context.Background(), "n@example.com", "123456"); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if !m.IsAuthenticated() {
		t.Error("not authenticated after OTP verification")
	}
}

func TestRegisterDoesNotAuthenticate(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPost, "/api/auth/register", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	m := newManager(t, srv)

	if err := m.Register(context.Background(), "n@example.com", "password1", "New"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if m.IsAuthenticated() {
		t.Error("authenticated after register; verification is still pending")
	}
}

func TestResolveFailureMeansUnauthenticated(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	})
	m := newManager(t, srv)

	m.Resolve(context.Background())
	if m.IsAuthenticated() {
		t.Error("authenticated after rejected resolve")
	}
}

func TestRefreshFailureClearsIdentity(t *testing.T) {
	srv := testutil.NewServer(t)
	handleLogin(srv)
	srv.Handle(http.MethodGet, "/api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	})
	m := newManager(t, srv)

	ctx := context.Background()
	if err := m.Login(ctx, "a@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.Refresh(ctx); err == nil {
		t.Fatal("Refresh succeeded against a rejecting server")
	}
	if m.IsAuthenticated() {
		t.Error("still authenticated after failed refresh")
	}
}

func TestForceLogoutSkipsServer(t *testing.T) {
	srv := testutil.NewServer(t)
	handleLogin(srv)
	m := newManager(t, srv)

	if err := m.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	m.ForceLogout()
	if m.IsAuthenticated() {
		t.Error("authenticated after ForceLogout")
	}
	if n := srv.Hits(http.MethodPost, "/api/auth/logout"); n != 0 {
		t.Errorf("logout endpoint hit %d times, want 0", n)
	}
}
