// Package query binds the API client to the server-state cache: it
// owns the hierarchical cache-key scheme and the read/mutation
// operations that are the only sanctioned writers of cache entries
// (besides the real-time bridge's event handlers).
package query

import (
	"strconv"

	"github.com/nhle/taskboard/internal/model"
)

// Root prefixes for bulk invalidation.
const (
	KeyTasks         = "tasks"
	KeyUsers         = "users"
	KeyNotifications = "notifications"
)

// KeyNotificationCount caches the unread badge count.
const KeyNotificationCount = "notifications.count"

// TaskListKey keys one page of the main task list. The signature
// covers every filter dimension, so distinct filter combinations
// never collide.
func TaskListKey(f model.TaskFilters) string {
	return "tasks.list." + f.Signature()
}

// TaskDetailKey keys a single task.
func TaskDetailKey(id string) string {
	return "tasks.detail." + id
}

// AssignedTasksKey keys the assigned-to-me dashboard view.
func AssignedTasksKey(f model.TaskFilters) string {
	return "tasks.assigned." + f.Signature()
}

// CreatedTasksKey keys the created-by-me dashboard view.
func CreatedTasksKey(f model.TaskFilters) string {
	return "tasks.created." + f.Signature()
}

// OverdueTasksKey keys the overdue dashboard view.
func OverdueTasksKey(f model.TaskFilters) string {
	return "tasks.overdue." + f.Signature()
}

// NotificationListKey keys the notification feed variant.
func NotificationListKey(unreadOnly bool) string {
	return "notifications.list." + strconv.FormatBool(unreadOnly)
}
