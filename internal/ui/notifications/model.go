package notifications

import (
	"context"
	"fmt"
	"io"

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

// LoadedMsg is sent when the notification feed has been loaded.
type LoadedMsg struct {
	Notifications []model.Notification
	Err           error
}

// MarkedMsg is sent after a mark-read operation completes.
type MarkedMsg struct {
	Err error
}

// BackMsg is sent when the user leaves the notifications view.
type BackMsg struct{}

// OpenTaskMsg asks the app to open the task a notification points at.
type OpenTaskMsg struct {
	TaskID string
}

// item wraps a notification for bubbles/list.
type item struct {
	n model.Notification
}

func (i item) FilterValue() string { return i.n.Message }

// delegate renders one notification row.
type delegate struct{}

func (d delegate) Height() int                               { return 1 }
func (d delegate) Spacing() int                              { return 0 }
func (d delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd   { return nil }
func (d delegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	it, ok := li.(item)
	if !ok {
		return
	}
	n := it.n
	isSelected := index == m.Index()

	marker := "●"
	if n.IsRead {
		marker = " "
	}
	line := fmt.Sprintf("%s %s", marker, n.Message)
	if n.IsRead {
		line = lipgloss.NewStyle().Foreground(theme.ColorGray).Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model is the notification feed view.
type Model struct {
	list    list.Model
	queries *query.Queries
	keys    *keys.KeyMap
	errText string
	width   int
	height  int
}

// New creates a new notifications model.
func New(q *query.Queries, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, delegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:    l,
		queries: q,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// Init loads the feed.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load returns a command that reads the feed through the cache.
func (m Model) Load() tea.Cmd {
	q := m.queries
	return func() tea.Msg {
		notifications, err := q.Notifications(context.Background(), false)
		return LoadedMsg{Notifications: notifications, Err: err}
	}
}

// Update handles messages for the notifications view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.Err != nil {
			m.errText = api.ErrorMessage(msg.Err)
			return m, nil
		}
		m.errText = ""
		items := make([]list.Item, len(msg.Notifications))
		for i, n := range msg.Notifications {
			items[i] = item{n: n}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case MarkedMsg:
		if msg.Err != nil {
			m.errText = api.ErrorMessage(msg.Err)
			return m, nil
		}
		return m, m.Load()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Select):
			if it, ok := m.list.SelectedItem().(item); ok {
				if id := it.n.Task.ID(); id != "" {
					return m, func() tea.Msg { return OpenTaskMsg{TaskID: id} }
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkRead):
			if it, ok := m.list.SelectedItem().(item); ok && !it.n.IsRead {
				q := m.queries
				id := it.n.ID
				return m, func() tea.Msg {
					return MarkedMsg{Err: q.MarkRead(context.Background(), id)}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkAllRead):
			q := m.queries
			return m, func() tea.Msg {
				return MarkedMsg{Err: q.MarkAllRead(context.Background())}
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the feed.
func (m Model) View() string {
	if m.errText != "" {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.list.View(), theme.ErrorStyle.Render(m.errText))
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
