// Package auth renders the unauthenticated flows: landing, login,
// registration, OTP verification, and password reset. Form input is
// validated here, before anything reaches the network.
package auth

import (
	"fmt"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/theme"
)

// Mode identifies which auth flow is active.
type Mode int

const (
	ModeLanding Mode = iota
	ModeLogin
	ModeRegister
	ModeVerifyOTP
	ModeForgotPassword
	ModeResetPassword
)

// LoginSubmitMsg carries validated login credentials.
type LoginSubmitMsg struct {
	Email    string
	Password string
}

// RegisterSubmitMsg carries validated registration data.
type RegisterSubmitMsg struct {
	Email    string
	Password string
	Name     string
}

// OTPSubmitMsg carries a validated verification code.
type OTPSubmitMsg struct {
	Email string
	OTP   string
}

// ResendOTPMsg asks for a fresh verification code.
type ResendOTPMsg struct {
	Email string
}

// FetchOTPMsg asks the app to pull the code from the configured
// inbox.
type FetchOTPMsg struct{}

// ForgotSubmitMsg starts the password-reset flow.
type ForgotSubmitMsg struct {
	Email string
}

// ResetSubmitMsg completes the password-reset flow.
type ResetSubmitMsg struct {
	Email       string
	OTP         string
	NewPassword string
}

// SwitchModeMsg moves between auth flows.
type SwitchModeMsg struct {
	Mode Mode
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// formBindings holds field values on the heap so huh's pointers stay
// valid across model copies.
type formBindings struct {
	email       string
	password    string
	name        string
	otp         string
	newPassword string
}

// Model is the Bubble Tea model for the auth flows.
type Model struct {
	mode    Mode
	form    *huh.Form
	fb      *formBindings
	errText string
	notice  string
	width   int
	height  int
}

// New creates the auth model showing the landing screen.
func New(width, height int) Model {
	return Model{
		mode:   ModeLanding,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Mode returns the active flow.
func (m Model) Mode() Mode {
	return m.mode
}

// Email returns the email entered so far, shared across flows (the
// OTP and reset forms pre-fill it).
func (m Model) Email() string {
	return m.fb.email
}

// SetError shows inline error text near the form and reopens it for
// another attempt.
func (m *Model) SetError(text string) {
	m.errText = text
	m.notice = ""
	if m.form != nil {
		m.form.State = huh.StateNormal
	}
}

// SetNotice shows informational text, e.g. "code sent".
func (m *Model) SetNotice(text string) {
	m.notice = text
	m.errText = ""
}

// SetOTP fills the verification code field, used by the inbox
// helper.
func (m *Model) SetOTP(code string) {
	m.fb.otp = code
}

// Switch activates a flow and builds its form.
func (m *Model) Switch(mode Mode) tea.Cmd {
	m.mode = mode
	m.errText = ""
	m.notice = ""
	m.fb.password = ""
	m.fb.newPassword = ""
	m.fb.otp = ""

	switch mode {
	case ModeLogin:
		m.form = m.loginForm()
	case ModeRegister:
		m.form = m.registerForm()
	case ModeVerifyOTP:
		m.form = m.otpForm()
	case ModeForgotPassword:
		m.form = m.forgotForm()
	case ModeResetPassword:
		m.form = m.resetForm()
	default:
		m.form = nil
		return nil
	}
	return m.form.Init()
}

// Update handles messages for the active flow.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleShortcut(key); handled {
			return m, cmd
		}
	}

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
		mode := ModeLanding
		if m.mode != ModeLogin {
			mode = ModeLogin
		}
		return m, func() tea.Msg { return SwitchModeMsg{Mode: mode} }
	}

	return m, cmd
}

// handleShortcut processes the cross-flow navigation keys.
func (m *Model) handleShortcut(msg tea.KeyMsg) (tea.Cmd, bool) {
	s := msg.String()

	if m.mode == ModeLanding {
		switch s {
		case "l", "enter":
			return func() tea.Msg { return SwitchModeMsg{Mode: ModeLogin} }, true
		case "r":
			return func() tea.Msg { return SwitchModeMsg{Mode: ModeRegister} }, true
		}
		return nil, false
	}

	switch {
	case m.mode == ModeLogin && s == "ctrl+r":
		return func() tea.Msg { return SwitchModeMsg{Mode: ModeRegister} }, true
	case m.mode == ModeLogin && s == "ctrl+f":
		return func() tea.Msg { return SwitchModeMsg{Mode: ModeForgotPassword} }, true
	case m.mode == ModeVerifyOTP && s == "ctrl+r":
		email := m.fb.email
		return func() tea.Msg { return ResendOTPMsg{Email: email} }, true
	case m.mode == ModeVerifyOTP && s == "ctrl+o":
		return func() tea.Msg { return FetchOTPMsg{} }, true
	}
	return nil, false
}

// View renders the active flow.
func (m Model) View() string {
	if m.mode == ModeLanding {
		return m.landingView()
	}

	title := map[Mode]string{
		ModeLogin:          "Sign in",
		ModeRegister:       "Create account",
		ModeVerifyOTP:      "Verify your email",
		ModeForgotPassword: "Forgot password",
		ModeResetPassword:  "Reset password",
	}[m.mode]

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if m.form != nil {
		b.WriteString(m.form.View())
	}
	if m.notice != "" {
		b.WriteString("\n" + theme.HelpStyle.Render(m.notice))
	}
	if m.errText != "" {
		b.WriteString("\n" + theme.ErrorStyle.Render(m.errText))
	}
	b.WriteString("\n" + m.hintLine())

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) landingView() string {
	title := theme.HeaderStyle.Render("Taskboard")
	tagline := theme.HelpStyle.Render(
		"Shared task boards with real-time updates, in your terminal.")
	hints := theme.HelpStyle.Render("l: sign in · r: create account · q: quit")

	return lipgloss.NewStyle().Padding(2, 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, "", tagline, "", hints))
}

func (m Model) hintLine() string {
	switch m.mode {
	case ModeLogin:
		return theme.HelpStyle.Render("ctrl+r: register · ctrl+f: forgot password · esc: back")
	case ModeVerifyOTP:
		return theme.HelpStyle.Render("ctrl+r: resend code · ctrl+o: fetch code from inbox · esc: back")
	default:
		return theme.HelpStyle.Render("esc: back")
	}
}

func (m *Model) loginForm() *huh.Form {
	return m.newForm(
		huh.NewInput().
			Title("Email").
			Value(&m.fb.email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	)
}

func (m *Model) registerForm() *huh.Form {
	return m.newForm(
		huh.NewInput().
			Title("Name").
			Value(&m.fb.name).
			Validate(validateRequired("Name")),
		huh.NewInput().
			Title("Email").
			Value(&m.fb.email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validatePassword),
	)
}

func (m *Model) otpForm() *huh.Form {
	return m.newForm(
		huh.NewInput().
			Title("Verification code").
			Placeholder("6-digit code from your email").
			Value(&m.fb.otp).
			Validate(validateOTP),
	)
}

func (m *Model) forgotForm() *huh.Form {
	return m.newForm(
		huh.NewInput().
			Title("Email").
			Value(&m.fb.email).
			Validate(validateEmail),
	)
}

func (m *Model) resetForm() *huh.Form {
	return m.newForm(
		huh.NewInput().
			Title("Verification code").
			Value(&m.fb.otp).
			Validate(validateOTP),
		huh.NewInput().
			Title("New password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.newPassword).
			Validate(validatePassword),
	)
}

func (m *Model) newForm(fields ...huh.Field) *huh.Form {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithWidth(w)
}

func (m Model) handleSubmit() tea.Cmd {
	fb := *m.fb
	switch m.mode {
	case ModeLogin:
		return func() tea.Msg {
			return LoginSubmitMsg{Email: fb.email, Password: fb.password}
		}
	case ModeRegister:
		return func() tea.Msg {
			return RegisterSubmitMsg{Email: fb.email, Password: fb.password, Name: fb.name}
		}
	case ModeVerifyOTP:
		return func() tea.Msg {
			return OTPSubmitMsg{Email: fb.email, OTP: fb.otp}
		}
	case ModeForgotPassword:
		return func() tea.Msg {
			return ForgotSubmitMsg{Email: fb.email}
		}
	case ModeResetPassword:
		return func() tea.Msg {
			return ResetSubmitMsg{Email: fb.email, OTP: fb.otp, NewPassword: fb.newPassword}
		}
	}
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateEmail(s string) error {
	if !emailPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("enter a valid email address")
	}
	return nil
}

func validatePassword(s string) error {
	if len(s) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

func validateOTP(s string) error {
	s = strings.TrimSpace(s)
	if len(s) != 6 {
		return fmt.Errorf("the code is 6 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("the code is 6 digits")
		}
	}
	return nil
}
