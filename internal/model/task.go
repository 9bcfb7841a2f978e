package model

import "time"

// TaskPriority is the closed set of priority levels a task may have.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
	PriorityUrgent TaskPriority = "Urgent"
)

// TaskStatus is the closed set of workflow states a task may be in.
type TaskStatus string

const (
	StatusToDo       TaskStatus = "To Do"
	StatusInProgress TaskStatus = "In Progress"
	StatusReview     TaskStatus = "Review"
	StatusCompleted  TaskStatus = "Completed"
)

// TaskPriorities lists all priorities in ascending order of urgency.
var TaskPriorities = []TaskPriority{
	PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent,
}

// TaskStatuses lists all statuses in workflow order.
var TaskStatuses = []TaskStatus{
	StatusToDo, StatusInProgress, StatusReview, StatusCompleted,
}

// Task is a work item as returned by the task-management API.
type Task struct {
	// ID is the server-assigned identifier for this task.
	ID string `json:"_id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title"`

	// Description is the full body text.
	Description string `json:"description"`

	// DueDate is the absolute instant by which the task is due.
	DueDate time.Time `json:"dueDate"`

	// Priority is the task's priority (use the Priority* constants).
	Priority TaskPriority `json:"priority"`

	// Status is the task's workflow status (use the Status* constants).
	Status TaskStatus `json:"status"`

	// Creator references the user who created the task. Depending on
	// the endpoint it may arrive embedded or as a bare identifier.
	Creator UserRef `json:"creatorId"`

	// AssignedTo references the assignee, if any.
	AssignedTo *UserRef `json:"assignedToId,omitempty"`

	// CreatedAt is when the task was created server-side.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the task was last modified server-side.
	UpdatedAt time.Time `json:"updatedAt"`
}

// OverdueAt reports whether the task is overdue at the given instant.
// A completed task is never overdue.
func (t Task) OverdueAt(now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusCompleted
}

// Overdue reports whether the task is overdue right now.
func (t Task) Overdue() bool {
	return t.OverdueAt(time.Now())
}

// TaskFormData is the payload for creating or updating a task.
// Optional fields are zero-skipped so a partial update only sends
// the fields the user actually set.
type TaskFormData struct {
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`
	Priority     TaskPriority `json:"priority,omitempty"`
	Status       TaskStatus   `json:"status,omitempty"`
	AssignedToID string       `json:"assignedToId,omitempty"`
}
