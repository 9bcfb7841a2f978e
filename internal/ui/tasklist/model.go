package tasklist

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
	"github.com/nhle/taskboard/internal/theme"
)

// Scope selects which server-side view the list shows.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeAssigned
	ScopeCreated
	ScopeOverdue
)

// scopeTitles maps scopes to list titles.
var scopeTitles = map[Scope]string{
	ScopeAll:      "Tasks",
	ScopeAssigned: "Assigned to me",
	ScopeCreated:  "Created by me",
	ScopeOverdue:  "Overdue",
}

// TasksLoadedMsg is sent when a page of tasks has been loaded.
type TasksLoadedMsg struct {
	Tasks      []model.Task
	Pagination api.Pagination
	Err        error
}

// SelectedTaskMsg is sent when a user selects a task to view details.
type SelectedTaskMsg struct {
	TaskID string
}

// sortModes defines the sort fields cycled by Tab.
var sortModes = []model.SortField{
	model.SortByDueDate,
	model.SortByCreatedAt,
	model.SortByPriority,
	model.SortByStatus,
	model.SortByTitle,
}

// statusFilters cycles through "no filter" plus each status.
var statusFilters = append([]model.TaskStatus{""}, model.TaskStatuses...)

// priorityFilters cycles through "no filter" plus each priority.
var priorityFilters = append([]model.TaskPriority{""}, model.TaskPriorities...)

// Model is the task board list view.
type Model struct {
	list       list.Model
	queries    *query.Queries
	keys       *keys.KeyMap
	filters    model.TaskFilters
	scope      Scope
	pagination api.Pagination
	errText    string
	sortIndex  int
	width      int
	height     int
}

// New creates a new task list model.
func New(q *query.Queries, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = scopeTitles[ScopeAll]
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:    l,
		queries: q,
		keys:    k,
		filters: model.TaskFilters{
			Page:      1,
			SortBy:    model.SortByDueDate,
			SortOrder: model.SortAsc,
		},
		width:  width,
		height: height,
	}
}

// Init returns a command that loads the initial page.
func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// LoadTasks returns a command that reads the current scope and
// filters through the cache.
func (m Model) LoadTasks() tea.Cmd {
	q := m.queries
	scope := m.scope
	filters := m.filters
	return func() tea.Msg {
		ctx := context.Background()
		var (
			page *api.TaskPage
			err  error
		)
		switch scope {
		case ScopeAssigned:
			page, err = q.AssignedTasks(ctx, filters)
		case ScopeCreated:
			page, err = q.CreatedTasks(ctx, filters)
		case ScopeOverdue:
			page, err = q.OverdueTasks(ctx, filters)
		default:
			page, err = q.Tasks(ctx, filters)
		}
		if err != nil {
			return TasksLoadedMsg{Err: err}
		}
		return TasksLoadedMsg{Tasks: page.Tasks, Pagination: page.Pagination}
	}
}

// SelectedTask returns the task currently under the cursor.
func (m Model) SelectedTask() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Filters returns the active filter set.
func (m Model) Filters() model.TaskFilters {
	return m.filters
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		if msg.Err != nil {
			m.errText = api.ErrorMessage(msg.Err)
			return m, nil
		}
		m.errText = ""
		m.pagination = msg.Pagination
		items := make([]list.Item, len(msg.Tasks))
		for i, task := range msg.Tasks {
			items[i] = TaskItem{Task: task}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			if task, ok := m.SelectedTask(); ok {
				id := task.ID
				return m, func() tea.Msg { return SelectedTaskMsg{TaskID: id} }
			}
			return m, nil

		case key.Matches(msg, m.keys.CycleSort):
			m.sortIndex = (m.sortIndex + 1) % len(sortModes)
			m.filters.SortBy = sortModes[m.sortIndex]
			m.filters.Page = 1
			return m, m.LoadTasks()

		case key.Matches(msg, m.keys.CycleStatus):
			m.filters.Status = cycleValue(statusFilters, m.filters.Status)
			m.filters.Page = 1
			return m, m.LoadTasks()

		case key.Matches(msg, m.keys.CyclePriority):
			m.filters.Priority = cycleValue(priorityFilters, m.filters.Priority)
			m.filters.Page = 1
			return m, m.LoadTasks()

		case key.Matches(msg, m.keys.NextPage):
			if m.pagination.HasNextPage {
				m.filters.Page++
				return m, m.LoadTasks()
			}
			return m, nil

		case key.Matches(msg, m.keys.PrevPage):
			if m.pagination.HasPrevPage && m.filters.Page > 1 {
				m.filters.Page--
				return m, m.LoadTasks()
			}
			return m, nil

		case key.Matches(msg, m.keys.Dashboard):
			m.scope = (m.scope + 1) % 4
			m.list.Title = scopeTitles[m.scope]
			m.filters.Page = 1
			return m, m.LoadTasks()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list plus the filter/pagination footer.
func (m Model) View() string {
	footer := m.footerLine()
	if m.errText != "" {
		footer = theme.ErrorStyle.Render(m.errText)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

func (m Model) footerLine() string {
	status := "all statuses"
	if m.filters.Status != "" {
		status = string(m.filters.Status)
	}
	priority := "all priorities"
	if m.filters.Priority != "" {
		priority = string(m.filters.Priority)
	}
	page := m.pagination.Page
	if page == 0 {
		page = m.filters.Page
	}
	totalPages := m.pagination.TotalPages
	if totalPages == 0 {
		totalPages = 1
	}
	return theme.HelpStyle.Render(fmt.Sprintf(
		"sort: %s | %s | %s | page %d/%d",
		m.filters.SortBy, status, priority, page, totalPages))
}

// cycleValue advances through values, wrapping at the end.
func cycleValue[T comparable](values []T, current T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
