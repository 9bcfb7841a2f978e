package api

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

type unreadCountData struct {
	Count int `json:"count"`
}

// ListNotifications fetches the current user's notification feed,
// optionally restricted to unread entries.
func (c *Client) ListNotifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	path := "/notifications"
	if unreadOnly {
		path += "?unreadOnly=true"
	}
	var notifications []model.Notification
	if err := c.Get(ctx, path, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadCount fetches the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var data unreadCountData
	if err := c.Get(ctx, "/notifications/unread-count", &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.Patch(ctx, "/notifications/"+id+"/read", nil, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Patch(ctx, "/notifications/read-all", nil, nil)
}
