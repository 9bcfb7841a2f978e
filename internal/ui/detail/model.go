package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// BackMsg is sent when the user leaves the detail view.
type BackMsg struct{}

// EditRequestMsg asks the app to open the edit form for the task.
type EditRequestMsg struct {
	Task model.Task
}

// DeleteRequestMsg asks the app to delete the task.
type DeleteRequestMsg struct {
	TaskID string
}

// Model is the task detail view.
type Model struct {
	task     *model.Task
	loading  bool
	errText  string
	keys     *keys.KeyMap
	viewport viewport.Model
	width    int
	height   int
}

// New creates a new detail model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	return Model{
		keys:     k,
		viewport: vp,
		width:    width,
		height:   height,
	}
}

// SetLoading toggles the loading indicator.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.errText = ""
	}
}

// SetTask replaces the displayed task. The cache's write-through
// means this can fire while the view is open, refreshing it in place.
func (m *Model) SetTask(task *model.Task) {
	m.task = task
	m.loading = false
	m.errText = ""
	m.viewport.SetContent(m.renderContent())
}

// SetError shows an inline error instead of content.
func (m *Model) SetError(text string) {
	m.loading = false
	m.errText = text
}

// TaskID returns the identifier of the displayed task, if any.
func (m Model) TaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.EditTask):
			if m.task != nil {
				task := *m.task
				return m, func() tea.Msg { return EditRequestMsg{Task: task} }
			}
			return m, nil
		case key.Matches(msg, m.keys.DeleteTask):
			if m.task != nil {
				id := m.task.ID
				return m, func() tea.Msg { return DeleteRequestMsg{TaskID: id} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the task detail panel.
func (m Model) View() string {
	if m.loading {
		return theme.DetailPanelStyle.Render("Loading task...")
	}
	if m.errText != "" {
		return theme.DetailPanelStyle.Render(theme.ErrorStyle.Render(m.errText))
	}
	if m.task == nil {
		return theme.DetailPanelStyle.Render("No task selected")
	}
	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(m.viewport.View())
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 4
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) renderContent() string {
	t := m.task

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Status:   "))
	b.WriteString(theme.StatusStyle(t.Status).Render(string(t.Status)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Priority: "))
	b.WriteString(theme.PriorityStyle(t.Priority).Render(string(t.Priority)))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Due:      "))
	due := t.DueDate.Format("Mon, Jan 2 2006 15:04")
	if t.Overdue() {
		due += theme.OverdueStyle.Render("  OVERDUE")
	}
	b.WriteString(due)
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Creator:  "))
	b.WriteString(t.Creator.DisplayName())
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Assignee: "))
	if t.AssignedTo != nil && !t.AssignedTo.IsZero() {
		b.WriteString(t.AssignedTo.DisplayName())
	} else {
		b.WriteString("unassigned")
	}
	b.WriteString("\n\n")

	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n\n")
	}

	b.WriteString(theme.HelpStyle.Render(fmt.Sprintf(
		"created %s | updated %s",
		t.CreatedAt.Format("2006-01-02"),
		t.UpdatedAt.Format("2006-01-02"))))

	return b.String()
}
