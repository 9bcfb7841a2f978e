package taskform

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// TaskSubmittedMsg is dispatched when the form completes. For edits,
// TaskID carries the target identifier.
type TaskSubmittedMsg struct {
	TaskID string
	Data   model.TaskFormData
}

// TaskFormCancelMsg is dispatched when the user cancels the form.
type TaskFormCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title        string
	description  string
	dueDate      string
	priority     model.TaskPriority
	status       model.TaskStatus
	assignedToID string
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	editMode bool
	editID   string
	users    []model.User
	errText  string
	width    int
	height   int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium, status: model.StatusToDo},
		width:  width,
		height: height,
	}
}

// SetUsers sets the available assignees for the form selector.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// SetError shows inline error text under the form, e.g. after a
// rejected submission the user should correct and resubmit.
func (m *Model) SetError(text string) {
	m.errText = text
	if m.form != nil {
		m.form.State = huh.StateNormal
	}
}

// StartCreate initializes the form for creating a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editID = ""
	m.errText = ""
	m.fb.title = ""
	m.fb.description = ""
	m.fb.dueDate = ""
	m.fb.priority = model.PriorityMedium
	m.fb.status = model.StatusToDo
	m.fb.assignedToID = ""
	m.form = m.buildForm(false)
	return m.form.Init()
}

// StartEdit initializes the form for editing an existing task.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	m.editMode = true
	m.editID = task.ID
	m.errText = ""
	m.fb.title = task.Title
	m.fb.description = task.Description
	if task.DueDate.IsZero() {
		m.fb.dueDate = ""
	} else {
		m.fb.dueDate = task.DueDate.Format("2006-01-02")
	}
	m.fb.priority = task.Priority
	m.fb.status = task.Status
	if task.AssignedTo != nil {
		m.fb.assignedToID = task.AssignedTo.ID()
	} else {
		m.fb.assignedToID = ""
	}
	m.form = m.buildForm(true)
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return TaskFormCancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.editMode {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n" + m.form.View()
	if m.errText != "" {
		content += "\n" + theme.ErrorStyle.Render(m.errText)
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm(edit bool) *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("What needs to be done?").
			Value(&m.fb.title).
			Validate(validateRequired("Title")),
		huh.NewText().
			Title("Description").
			Placeholder("Optional details...").
			Value(&m.fb.description),
		huh.NewInput().
			Title("Due Date").
			Placeholder("YYYY-MM-DD").
			Value(&m.fb.dueDate).
			Validate(validateRequiredDate),
		huh.NewSelect[model.TaskPriority]().
			Title("Priority").
			Options(
				huh.NewOption("Low", model.PriorityLow),
				huh.NewOption("Medium", model.PriorityMedium),
				huh.NewOption("High", model.PriorityHigh),
				huh.NewOption("Urgent", model.PriorityUrgent),
			).
			Value(&m.fb.priority),
	}

	if edit {
		fields = append(fields,
			huh.NewSelect[model.TaskStatus]().
				Title("Status").
				Options(
					huh.NewOption("To Do", model.StatusToDo),
					huh.NewOption("In Progress", model.StatusInProgress),
					huh.NewOption("Review", model.StatusReview),
					huh.NewOption("Completed", model.StatusCompleted),
				).
				Value(&m.fb.status),
		)
	}

	fields = append(fields, m.assigneeField())

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m *Model) assigneeField() huh.Field {
	opts := []huh.Option[string]{
		huh.NewOption("Unassigned", ""),
	}
	for _, u := range m.users {
		opts = append(opts, huh.NewOption(u.Name, u.ID))
	}
	return huh.NewSelect[string]().
		Title("Assignee").
		Options(opts...).
		Value(&m.fb.assignedToID)
}

func (m Model) handleSubmit() tea.Cmd {
	data := model.TaskFormData{
		Title:        m.fb.title,
		Description:  m.fb.description,
		Priority:     m.fb.priority,
		AssignedToID: m.fb.assignedToID,
	}
	if m.editMode {
		data.Status = m.fb.status
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(m.fb.dueDate)); err == nil {
		due := t
		data.DueDate = &due
	}

	id := m.editID
	return func() tea.Msg { return TaskSubmittedMsg{TaskID: id, Data: data} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateRequiredDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("due date is required")
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
