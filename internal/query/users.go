package query

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

// Users returns all verified users for the assignment picker.
func (q *Queries) Users(ctx context.Context) ([]model.User, error) {
	v, err := q.cache.Get(ctx, KeyUsers, func(ctx context.Context) (interface{}, error) {
		return q.api.ListUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.User), nil
}

// UpdateProfile changes the current user's display name and
// invalidates the users list (assignment pickers show names).
func (q *Queries) UpdateProfile(ctx context.Context, name string) (*model.AuthUser, error) {
	user, err := q.api.UpdateProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	q.cache.InvalidatePrefix(KeyUsers)
	return user, nil
}
