package api

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp,omitempty"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// Login authenticates with email and password. The session cookie is
// captured by the jar; the returned identity comes straight from the
// response body.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthUser, error) {
	var user model.AuthUser
	err := c.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Register creates a new unverified account. It does not establish a
// session; the user must verify via OTP first.
func (c *Client) Register(ctx context.Context, email, password, name string) error {
	return c.Post(ctx, "/auth/register", registerRequest{
		Email:    email,
		Password: password,
		Name:     name,
	}, nil)
}

// Logout terminates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.Post(ctx, "/auth/logout", nil, nil)
}

// VerifyOTP confirms the emailed one-time code and, like Login,
// returns the authenticated identity directly.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*model.AuthUser, error) {
	var user model.AuthUser
	err := c.Post(ctx, "/auth/verify-otp", otpRequest{Email: email, OTP: otp}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ResendOTP requests a fresh verification code for the email.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	return c.Post(ctx, "/auth/resend-otp", otpRequest{Email: email}, nil)
}

// ForgotPassword starts the password-reset flow for the email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.Post(ctx, "/auth/forgot-password", otpRequest{Email: email}, nil)
}

// ResetPassword completes the password-reset flow with the emailed
// code.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	return c.Post(ctx, "/auth/reset-password", resetPasswordRequest{
		Email:       email,
		OTP:         otp,
		NewPassword: newPassword,
	}, nil)
}
