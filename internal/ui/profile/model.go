// Package profile renders the account view with an inline name-edit
// form.
package profile

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// SubmitMsg carries the edited display name.
type SubmitMsg struct {
	Name string
}

// BackMsg returns to the previous view.
type BackMsg struct{}

// formBindings keeps the field value on the heap so huh's pointer
// stays valid across model copies.
type formBindings struct {
	name string
}

// Model is the Bubble Tea model for the profile view.
type Model struct {
	user    *model.AuthUser
	form    *huh.Form
	fb      *formBindings
	editing bool
	errText string
	width   int
}

// New creates the profile model for the signed-in user.
func New(user *model.AuthUser, width int) Model {
	return Model{user: user, fb: &formBindings{}, width: width}
}

// SetUser refreshes the displayed identity after a profile update.
func (m *Model) SetUser(user *model.AuthUser) {
	m.user = user
	m.editing = false
	m.form = nil
	m.errText = ""
}

// SetError shows inline error text and reopens the form for another
// attempt.
func (m *Model) SetError(text string) {
	m.errText = text
	if m.form != nil {
		m.form.State = huh.StateNormal
	}
}

// SetSize updates the view width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// Update handles messages for the profile view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.editing {
		return m.updateForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "e", "enter":
			return m, m.startEdit()
		case "esc":
			return m, func() tea.Msg { return BackMsg{} }
		}
	}
	return m, nil
}

func (m *Model) startEdit() tea.Cmd {
	if m.user != nil {
		m.fb.name = m.user.Name
	}
	m.errText = ""
	m.form = huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Display name").
			Value(&m.fb.name).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("name is required")
				}
				return nil
			}),
	)).WithWidth(m.formWidth())
	m.editing = true
	return m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		name := strings.TrimSpace(m.fb.name)
		m.editing = false
		return m, func() tea.Msg { return SubmitMsg{Name: name} }
	case huh.StateAborted:
		m.editing = false
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// View renders the profile view.
func (m Model) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(title.Render("Account"))
	b.WriteString("\n")

	label := theme.HelpStyle
	if m.user != nil {
		b.WriteString(label.Render("Name  ") + m.user.Name + "\n")
		b.WriteString(label.Render("Email ") + m.user.Email + "\n")
	}

	if m.editing && m.form != nil {
		b.WriteString("\n" + m.form.View())
	}
	if m.errText != "" {
		b.WriteString("\n" + theme.ErrorStyle.Render(m.errText))
	}
	if !m.editing {
		b.WriteString("\n" + theme.HelpStyle.Render("e: edit name · esc: back"))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
