package query

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

// Notifications returns the notification feed, optionally unread-only.
func (q *Queries) Notifications(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	v, err := q.cache.Get(ctx, NotificationListKey(unreadOnly), func(ctx context.Context) (interface{}, error) {
		return q.api.ListNotifications(ctx, unreadOnly)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Notification), nil
}

// UnreadCount returns the unread badge count.
func (q *Queries) UnreadCount(ctx context.Context) (int, error) {
	v, err := q.cache.Get(ctx, KeyNotificationCount, func(ctx context.Context) (interface{}, error) {
		return q.api.UnreadCount(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// MarkRead marks one notification read and refreshes the feed and
// badge.
func (q *Queries) MarkRead(ctx context.Context, id string) error {
	if err := q.api.MarkNotificationRead(ctx, id); err != nil {
		return err
	}
	q.cache.InvalidatePrefix(KeyNotifications)
	return nil
}

// MarkAllRead marks every notification read and refreshes the feed
// and badge.
func (q *Queries) MarkAllRead(ctx context.Context) error {
	if err := q.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}
	q.cache.InvalidatePrefix(KeyNotifications)
	return nil
}
