package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/ui/detail"
	notifview "github.com/nhle/taskboard/internal/ui/notifications"
	profileview "github.com/nhle/taskboard/internal/ui/profile"
	"github.com/nhle/taskboard/internal/ui/taskform"
	"github.com/nhle/taskboard/internal/ui/tasklist"
)

// taskLoadedMsg carries a task detail read.
type taskLoadedMsg struct {
	task *model.Task
	err  error
}

// taskSavedMsg carries the outcome of a create or update.
type taskSavedMsg struct {
	err error
}

// taskDeletedMsg carries the outcome of a delete.
type taskDeletedMsg struct {
	err error
}

// usersLoadedMsg carries the assignee options for the task form.
type usersLoadedMsg struct {
	users []model.User
	err   error
}

// profileSavedMsg carries the outcome of a profile update.
type profileSavedMsg struct {
	user *model.AuthUser
	err  error
}

// routeTaskMsg handles messages from the board, detail, form,
// notification, and profile views.
func (m Model) routeTaskMsg(msg tea.Msg) (tea.Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case tasklist.SelectedTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detailView.SetLoading(true)
		return m, m.loadTask(msg.TaskID), true

	case taskLoadedMsg:
		m.detailView.SetLoading(false)
		if msg.err != nil {
			m.detailView.SetError(api.ErrorMessage(msg.err))
			return m, nil, true
		}
		m.detailView.SetTask(msg.task)
		return m, nil, true

	case taskform.TaskSubmittedMsg:
		return m, m.saveTask(msg.TaskID, msg.Data), true

	case taskform.TaskFormCancelMsg:
		m.currentView = m.previousView
		return m, nil, true

	case taskSavedMsg:
		if msg.err != nil {
			m.formView.SetError(api.ErrorMessage(msg.err))
			return m, nil, true
		}
		m.currentView = ViewBoard
		return m, m.boardView.LoadTasks(), true

	case taskDeletedMsg:
		if msg.err != nil {
			m.log.Warn("task delete failed", zap.Error(msg.err))
		}
		m.currentView = ViewBoard
		return m, m.boardView.LoadTasks(), true

	case detail.BackMsg:
		m.currentView = ViewBoard
		return m, nil, true

	case detail.EditRequestMsg:
		m.previousView = m.currentView
		m.currentView = ViewTaskEdit
		m.formView.SetUsers(m.users)
		return m, tea.Batch(m.formView.StartEdit(msg.Task), m.loadUsers()), true

	case detail.DeleteRequestMsg:
		return m, m.deleteTask(msg.TaskID), true

	case notifview.BackMsg:
		m.currentView = ViewBoard
		return m, nil, true

	case notifview.OpenTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detailView.SetLoading(true)
		return m, m.loadTask(msg.TaskID), true

	case profileview.BackMsg:
		m.currentView = ViewBoard
		return m, nil, true

	case profileview.SubmitMsg:
		return m, m.updateProfile(msg.Name), true

	case profileSavedMsg:
		if msg.err != nil {
			m.profileView.SetError(api.ErrorMessage(msg.err))
			return m, nil, true
		}
		m.session.SetUser(msg.user)
		m.profileView.SetUser(msg.user)
		return m, nil, true

	case usersLoadedMsg:
		if msg.err != nil {
			m.log.Debug("user list load failed", zap.Error(msg.err))
			return m, nil, true
		}
		m.users = msg.users
		m.formView.SetUsers(msg.users)
		return m, nil, true
	}

	return m, nil, false
}

// loadTask reads a task detail through the cache.
func (m Model) loadTask(id string) tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		task, err := q.Task(ctx, id)
		return taskLoadedMsg{task: task, err: err}
	}
}

// saveTask creates or updates a task. Empty id means create.
func (m Model) saveTask(id string, data model.TaskFormData) tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		var err error
		if id == "" {
			_, err = q.CreateTask(ctx, data)
		} else {
			_, err = q.UpdateTask(ctx, id, data)
		}
		return taskSavedMsg{err: err}
	}
}

// deleteTask removes a task.
func (m Model) deleteTask(id string) tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return taskDeletedMsg{err: q.DeleteTask(ctx, id)}
	}
}

// loadUsers reads the assignee options through the cache.
func (m Model) loadUsers() tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		users, err := q.Users(ctx)
		return usersLoadedMsg{users: users, err: err}
	}
}

// updateProfile changes the display name.
func (m Model) updateProfile(name string) tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		user, err := q.UpdateProfile(ctx, name)
		return profileSavedMsg{user: user, err: err}
	}
}
