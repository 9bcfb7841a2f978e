package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/realtime"
	authview "github.com/nhle/taskboard/internal/ui/auth"
)

// opTimeout bounds a single user-initiated API operation.
const opTimeout = 15 * time.Second

// authOp identifies which auth operation produced an authResultMsg.
type authOp int

const (
	opLogin authOp = iota
	opRegister
	opVerify
	opResend
	opForgot
	opReset
	opLogout
)

// sessionEventMsg is pumped from session listeners into the Bubble
// Tea loop.
type sessionEventMsg struct {
	authenticated bool
	user          *model.AuthUser
}

// sessionResolvedMsg reports the outcome of the startup session
// restore.
type sessionResolvedMsg struct {
	authenticated bool
}

// authLostMsg fires when the server rejected the session on a
// protected view.
type authLostMsg struct{}

// authResultMsg carries the outcome of an auth operation.
type authResultMsg struct {
	op  authOp
	err error
}

// otpFetchedMsg carries a verification code pulled from the inbox.
type otpFetchedMsg struct {
	code string
	err  error
}

// cacheEventMsg surfaces a cache change to the view router.
type cacheEventMsg struct {
	key string
}

// bridgeStateMsg surfaces a connection-state change for the header
// indicator.
type bridgeStateMsg struct {
	state realtime.State
}

// resolveSession restores persisted cookies and asks the server who
// we are. A restore failure means "not signed in", never a fatal
// error.
func (m Model) resolveSession() tea.Cmd {
	sess := m.session
	client := m.apiClient
	log := m.log
	return func() tea.Msg {
		cookies, err := credential.LoadSessionCookies()
		if err != nil {
			log.Debug("session cookie restore failed", zap.Error(err))
		}
		if len(cookies) > 0 {
			client.RestoreSessionCookies(cookies)
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		sess.Resolve(ctx)
		return sessionResolvedMsg{authenticated: sess.IsAuthenticated()}
	}
}

// waitForSessionEvent blocks on the session listener pump.
func (m Model) waitForSessionEvent() tea.Cmd {
	ch := m.sessionCh
	return func() tea.Msg {
		return <-ch
	}
}

// waitForAuthLost blocks on the HTTP client's auth-loss hook.
func (m Model) waitForAuthLost() tea.Cmd {
	ch := m.authLostCh
	return func() tea.Msg {
		<-ch
		return authLostMsg{}
	}
}

// waitForCacheEvent blocks on the cache change feed.
func (m Model) waitForCacheEvent() tea.Cmd {
	ch := m.store.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return cacheEventMsg{key: ev.Key}
	}
}

// waitForBridgeState blocks on the bridge's state feed.
func (m Model) waitForBridgeState() tea.Cmd {
	ch := m.bridge.States()
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return bridgeStateMsg{state: state}
	}
}

// enterAuthenticated moves to the board and starts the background
// machinery. Safe to call again on an already-authenticated model.
func (m *Model) enterAuthenticated() tea.Cmd {
	m.guard.set(true)
	m.currentView = ViewBoard
	m.profileView.SetUser(m.session.User())
	return tea.Batch(
		m.boardView.LoadTasks(),
		m.loadUsers(),
		m.poller.Start(),
		persistCookies(m.apiClient),
	)
}

// enterUnauthenticated clears client state and lands on the login
// form. The bridge disconnects through its own session listener.
func (m *Model) enterUnauthenticated() tea.Cmd {
	m.guard.set(false)
	m.poller.Stop()
	m.store.Clear()
	m.unreadCount = 0
	m.previousView = ViewAuth
	m.currentView = ViewAuth
	cmd := m.authView.Switch(authview.ModeLogin)
	if m.authNotice != "" {
		m.authView.SetError(m.authNotice)
		m.authNotice = ""
	}
	return cmd
}

// routeAuthMsg handles messages from the auth view and their results.
func (m Model) routeAuthMsg(msg tea.Msg) (tea.Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case authview.SwitchModeMsg:
		return m, m.authView.Switch(msg.Mode), true

	case authview.LoginSubmitMsg:
		email, password := msg.Email, msg.Password
		return m, m.runAuthOp(opLogin, func(ctx context.Context) error {
			return m.session.Login(ctx, email, password)
		}), true

	case authview.RegisterSubmitMsg:
		email, password, name := msg.Email, msg.Password, msg.Name
		return m, m.runAuthOp(opRegister, func(ctx context.Context) error {
			return m.session.Register(ctx, email, password, name)
		}), true

	case authview.OTPSubmitMsg:
		email, otp := msg.Email, msg.OTP
		return m, m.runAuthOp(opVerify, func(ctx context.Context) error {
			return m.session.VerifyOTP(ctx, email, otp)
		}), true

	case authview.ResendOTPMsg:
		email := msg.Email
		return m, m.runAuthOp(opResend, func(ctx context.Context) error {
			return m.session.ResendOTP(ctx, email)
		}), true

	case authview.ForgotSubmitMsg:
		email := msg.Email
		return m, m.runAuthOp(opForgot, func(ctx context.Context) error {
			return m.session.ForgotPassword(ctx, email)
		}), true

	case authview.ResetSubmitMsg:
		email, otp, password := msg.Email, msg.OTP, msg.NewPassword
		return m, m.runAuthOp(opReset, func(ctx context.Context) error {
			return m.session.ResetPassword(ctx, email, otp, password)
		}), true

	case authview.FetchOTPMsg:
		if m.inbox == nil {
			m.authView.SetError("No inbox configured. Add an inbox section to the config file.")
			return m, nil, true
		}
		return m, m.fetchOTP(), true

	case otpFetchedMsg:
		if msg.err != nil {
			m.authView.SetError(msg.err.Error())
			return m, nil, true
		}
		m.authView.SetOTP(msg.code)
		m.authView.SetNotice("Code filled from inbox. Press enter to verify.")
		return m, nil, true

	case authResultMsg:
		return m.handleAuthResult(msg)
	}

	return m, nil, false
}

// handleAuthResult applies the outcome of an auth operation to the
// auth view. View transitions for login/verify happen through the
// session event, not here.
func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd, bool) {
	if msg.err != nil {
		m.authView.SetError(msg.err.Error())
		return m, nil, true
	}

	switch msg.op {
	case opRegister:
		cmd := m.authView.Switch(authview.ModeVerifyOTP)
		m.authView.SetNotice("We sent a 6-digit code to your email.")
		return m, cmd, true

	case opResend:
		m.authView.SetNotice("Verification code sent.")
		return m, nil, true

	case opForgot:
		cmd := m.authView.Switch(authview.ModeResetPassword)
		m.authView.SetNotice("Check your email for the reset code.")
		return m, cmd, true

	case opReset:
		cmd := m.authView.Switch(authview.ModeLogin)
		m.authView.SetNotice("Password updated. Sign in with your new password.")
		return m, cmd, true

	case opLogout:
		return m, clearStoredCookies(), true
	}

	return m, nil, true
}

// runAuthOp wraps a session operation in a bounded context and
// reports the outcome.
func (m Model) runAuthOp(op authOp, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return authResultMsg{op: op, err: fn(ctx)}
	}
}

// doLogout ends the server session. A server-side failure still
// clears the local identity so the user is never trapped signed in.
func (m Model) doLogout() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := sess.Logout(ctx); err != nil {
			sess.ForceLogout()
		}
		return authResultMsg{op: opLogout}
	}
}

// fetchOTP pulls the most recent verification code from the
// configured inbox.
func (m Model) fetchOTP() tea.Cmd {
	client := m.inbox
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		code, err := client.LatestOTP(ctx, time.Now().Add(-15*time.Minute))
		return otpFetchedMsg{code: code, err: err}
	}
}

// persistCookies saves the session cookie so the next start can
// resume without logging in.
func persistCookies(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		_ = credential.SaveSessionCookies(client.SessionCookies())
		return nil
	}
}

// clearStoredCookies drops the persisted session cookie.
func clearStoredCookies() tea.Cmd {
	return func() tea.Msg {
		_ = credential.ClearSessionCookies()
		return nil
	}
}
