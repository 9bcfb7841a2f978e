package api

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

type updateProfileRequest struct {
	Name string `json:"name"`
}

// Profile resolves the current session's identity. A failure here
// while unauthenticated is expected and simply means "nobody".
func (c *Client) Profile(ctx context.Context) (*model.AuthUser, error) {
	var user model.AuthUser
	if err := c.Get(ctx, "/users/profile", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the current user's display name, the only
// self-editable field.
func (c *Client) UpdateProfile(ctx context.Context, name string) (*model.AuthUser, error) {
	var user model.AuthUser
	if err := c.Patch(ctx, "/users/profile", updateProfileRequest{Name: name}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers fetches all verified users, used for task assignment.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.Get(ctx, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}
