package model

import "time"

// User is a registered account as returned by the users endpoints.
type User struct {
	// ID is the server-assigned identifier for this user.
	ID string `json:"id"`

	// Email is the account email address.
	Email string `json:"email"`

	// Name is the self-editable display name.
	Name string `json:"name"`

	// IsVerified reports whether the email address passed OTP
	// verification.
	IsVerified bool `json:"isVerified"`

	// CreatedAt is when the account was registered.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the account was last modified.
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthUser is the "who am I" projection of User carried by the
// session. It is populated from login/OTP responses and from the
// profile endpoint.
type AuthUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsVerified bool   `json:"isVerified"`
}
