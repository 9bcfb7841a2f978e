package model

import "time"

// NotificationType identifies what kind of activity produced a
// notification.
type NotificationType string

const (
	NotificationTaskAssigned NotificationType = "task_assigned"
	NotificationTaskUpdated  NotificationType = "task_updated"
)

// Notification is an alert surfaced to the user about activity on a
// task. Notifications are created server-side; the client only marks
// them read.
type Notification struct {
	// ID is the server-assigned identifier for this notification.
	ID string `json:"_id"`

	// UserID is the owning user.
	UserID string `json:"userId"`

	// Type identifies the activity that produced this notification.
	Type NotificationType `json:"type"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Task references the related task; may arrive embedded or as a
	// bare identifier.
	Task TaskRef `json:"taskId"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"isRead"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"createdAt"`
}
