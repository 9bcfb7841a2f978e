// Package app is the root Bubble Tea model. It routes between views,
// couples the session to the real-time bridge and the notification
// poller, and performs the hard reset when the server rejects the
// session.
package app

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/inbox"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
	"github.com/nhle/taskboard/internal/realtime"
	"github.com/nhle/taskboard/internal/session"
	appsync "github.com/nhle/taskboard/internal/sync"
	"github.com/nhle/taskboard/internal/ui"
	authview "github.com/nhle/taskboard/internal/ui/auth"
	"github.com/nhle/taskboard/internal/ui/detail"
	notifview "github.com/nhle/taskboard/internal/ui/notifications"
	profileview "github.com/nhle/taskboard/internal/ui/profile"
	"github.com/nhle/taskboard/internal/ui/taskform"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewAuth ViewState = iota
	ViewBoard
	ViewDetail
	ViewTaskCreate
	ViewTaskEdit
	ViewNotifications
	ViewProfile
)

// viewGuard shares "is the user on a protected view" with the HTTP
// client's auth-loss hook, which fires from request goroutines.
type viewGuard struct {
	mu        sync.Mutex
	protected bool
}

func (g *viewGuard) set(protected bool) {
	g.mu.Lock()
	g.protected = protected
	g.mu.Unlock()
}

func (g *viewGuard) isProtected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.protected
}

// Deps bundles the long-lived components the root model coordinates.
type Deps struct {
	Config  *model.AppConfig
	API     *api.Client
	Cache   *cache.Store
	Queries *query.Queries
	Session *session.Manager
	Bridge  *realtime.Bridge
	Poller  *appsync.Poller
	Inbox   *inbox.Client
	Log     *zap.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the session lifecycle.
type Model struct {
	cfg       *model.AppConfig
	apiClient *api.Client
	store     *cache.Store
	queries   *query.Queries
	session   *session.Manager
	bridge    *realtime.Bridge
	poller    *appsync.Poller
	inbox     *inbox.Client
	log       *zap.Logger

	keys   *keys.KeyMap
	layout ui.Layout
	guard  *viewGuard
	ready  bool

	currentView  ViewState
	previousView ViewState

	authView    authview.Model
	boardView   tasklist.Model
	detailView  detail.Model
	formView    taskform.Model
	notifView   notifview.Model
	profileView profileview.Model

	users       []model.User
	unreadCount int
	bridgeState realtime.State
	authNotice  string

	sessionCh  chan sessionEventMsg
	authLostCh chan struct{}
}

// New creates the root model and wires the session listeners. The
// bridge follows the session directly; view routing and poller
// lifecycle follow it through the Bubble Tea loop.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	guard := &viewGuard{}

	m := Model{
		cfg:         d.Config,
		apiClient:   d.API,
		store:       d.Cache,
		queries:     d.Queries,
		session:     d.Session,
		bridge:      d.Bridge,
		poller:      d.Poller,
		inbox:       d.Inbox,
		log:         d.Log,
		keys:        k,
		guard:       guard,
		currentView: ViewAuth,
		authView:    authview.New(80, 24),
		boardView:   tasklist.New(d.Queries, k, 80, 24),
		detailView:  detail.New(k, 80, 24),
		formView:    taskform.New(80, 24),
		notifView:   notifview.New(d.Queries, k, 80, 24),
		profileView: profileview.New(nil, 80),
		sessionCh:   make(chan sessionEventMsg, 4),
		authLostCh:  make(chan struct{}, 1),
	}

	d.Session.OnChange(d.Bridge.HandleSessionChange)
	sessionCh := m.sessionCh
	d.Session.OnChange(func(authenticated bool, user *model.AuthUser) {
		select {
		case sessionCh <- sessionEventMsg{authenticated: authenticated, user: user}:
		default:
		}
	})

	authLostCh := m.authLostCh
	d.API.SetAuthLostHandler(guard.isProtected, func() {
		select {
		case authLostCh <- struct{}{}:
		default:
		}
	})

	return m
}

// Init resolves any persisted session and arms the long-lived
// subscriptions.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.resolveSession(),
		m.waitForSessionEvent(),
		m.waitForAuthLost(),
		m.waitForCacheEvent(),
		m.waitForBridgeState(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.authView.SetSize(contentWidth, contentHeight)
		m.boardView.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.formView.SetSize(contentWidth, contentHeight)
		m.notifView.SetSize(contentWidth, contentHeight)
		m.profileView.SetSize(contentWidth)
		// Forward to the active view so huh forms can lay out.
		return m.updateActiveView(msg)

	case sessionResolvedMsg:
		if msg.authenticated {
			return m, m.enterAuthenticated()
		}
		// No persisted session: stay on the landing screen.
		return m, nil

	case sessionEventMsg:
		rearm := m.waitForSessionEvent()
		if msg.authenticated {
			return m, tea.Batch(m.enterAuthenticated(), rearm)
		}
		cmd := m.enterUnauthenticated()
		return m, tea.Batch(cmd, rearm)

	case authLostMsg:
		// The server rejected the session on a protected view:
		// clear everything and land on the login form.
		m.authNotice = "Your session has expired. Please sign in again."
		m.session.ForceLogout()
		return m, tea.Batch(clearStoredCookies(), m.waitForAuthLost())

	case appsync.RefreshedMsg:
		if msg.Err == nil {
			m.unreadCount = msg.UnreadCount
		}
		return m, m.poller.WaitForNextResult()

	case cacheEventMsg:
		cmd := m.handleCacheEvent(msg.key)
		return m, tea.Batch(cmd, m.waitForCacheEvent())

	case bridgeStateMsg:
		m.bridgeState = msg.state
		return m, m.waitForBridgeState()

	case tea.KeyMsg:
		if mdl, cmd, handled := m.handleGlobalKey(msg); handled {
			return mdl, cmd
		}
	}

	if mdl, cmd, handled := m.routeAuthMsg(msg); handled {
		return mdl, cmd
	}
	if mdl, cmd, handled := m.routeTaskMsg(msg); handled {
		return mdl, cmd
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work across views. Form views
// keep full ownership of the keyboard.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		m.bridge.Disconnect()
		return m, tea.Quit, true
	}

	switch m.currentView {
	case ViewBoard, ViewDetail, ViewNotifications:
	default:
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewBoard {
			m.poller.Stop()
			m.bridge.Disconnect()
			return m, tea.Quit, true
		}

	case key.Matches(msg, m.keys.NewTask):
		if m.currentView == ViewBoard {
			m.previousView = m.currentView
			m.currentView = ViewTaskCreate
			m.formView.SetUsers(m.users)
			return m, tea.Batch(m.formView.StartCreate(), m.loadUsers()), true
		}

	case key.Matches(msg, m.keys.EditTask):
		if m.currentView == ViewBoard {
			if task, ok := m.boardView.SelectedTask(); ok {
				m.previousView = m.currentView
				m.currentView = ViewTaskEdit
				m.formView.SetUsers(m.users)
				return m, tea.Batch(m.formView.StartEdit(task), m.loadUsers()), true
			}
		}

	case key.Matches(msg, m.keys.DeleteTask):
		if m.currentView == ViewBoard {
			if task, ok := m.boardView.SelectedTask(); ok {
				return m, m.deleteTask(task.ID), true
			}
		}

	case key.Matches(msg, m.keys.Notifications):
		if m.currentView != ViewNotifications {
			m.previousView = m.currentView
			m.currentView = ViewNotifications
			return m, m.notifView.Load(), true
		}

	case key.Matches(msg, m.keys.Profile):
		if m.currentView == ViewBoard {
			m.previousView = m.currentView
			m.currentView = ViewProfile
			m.profileView.SetUser(m.session.User())
			return m, nil, true
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewBoard {
			m.store.InvalidatePrefix(query.KeyTasks)
			m.poller.Refresh()
			return m, m.boardView.LoadTasks(), true
		}

	case key.Matches(msg, m.keys.Logout):
		return m, m.doLogout(), true
	}

	return m, nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewAuth:
		m.authView, cmd = m.authView.Update(msg)
	case ViewBoard:
		m.boardView, cmd = m.boardView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewTaskCreate, ViewTaskEdit:
		m.formView, cmd = m.formView.Update(msg)
	case ViewNotifications:
		m.notifView, cmd = m.notifView.Update(msg)
	case ViewProfile:
		m.profileView, cmd = m.profileView.Update(msg)
	}

	return m, cmd
}

// handleCacheEvent reloads whichever active view shows data under the
// changed key.
func (m *Model) handleCacheEvent(changedKey string) tea.Cmd {
	var cmds []tea.Cmd

	if strings.HasPrefix(changedKey, query.KeyTasks) {
		switch m.currentView {
		case ViewBoard:
			cmds = append(cmds, m.boardView.LoadTasks())
		case ViewDetail:
			if id := m.detailView.TaskID(); id != "" &&
				(changedKey == query.KeyTasks || changedKey == query.TaskDetailKey(id)) {
				cmds = append(cmds, m.loadTask(id))
			}
		}
	}

	if strings.HasPrefix(changedKey, query.KeyNotifications) {
		if m.currentView == ViewNotifications {
			cmds = append(cmds, m.notifView.Load())
		}
	}

	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	unread := 0
	state := realtime.Disconnected
	if m.session.IsAuthenticated() {
		unread = m.unreadCount
		state = m.bridgeState
	}
	header := m.layout.RenderHeader("Taskboard", unread, state)
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewAuth:
		return m.authView.View()
	case ViewBoard:
		return m.boardView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewTaskCreate, ViewTaskEdit:
		return m.formView.View()
	case ViewNotifications:
		return m.notifView.View()
	case ViewProfile:
		return m.profileView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewAuth:
		return "taskboard"
	case ViewDetail:
		return "e edit | x delete | N notifications | esc back"
	case ViewTaskCreate, ViewTaskEdit:
		return "enter submit | esc cancel"
	case ViewNotifications:
		return "enter open task | m mark read | M mark all | esc back"
	case ViewProfile:
		return "e edit name | esc back"
	default:
		return "n new | e edit | x delete | tab sort | s status | p priority | d scope | N notifications | P profile | r refresh | q quit"
	}
}
