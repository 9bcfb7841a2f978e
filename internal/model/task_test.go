package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOverdueAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		due    time.Time
		status TaskStatus
		want   bool
	}{
		{"past due open", past, StatusToDo, true},
		{"past due in progress", past, StatusInProgress, true},
		{"past due in review", past, StatusReview, true},
		{"past due completed", past, StatusCompleted, false},
		{"future due open", future, StatusToDo, false},
		{"due exactly now", now, StatusToDo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueDate: tt.due, Status: tt.status}
			if got := task.OverdueAt(now); got != tt.want {
				t.Errorf("OverdueAt = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskDecodesServerFieldNames(t *testing.T) {
	raw := `{
		"_id": "t1",
		"title": "Ship it",
		"description": "",
		"dueDate": "2026-03-20T00:00:00Z",
		"priority": "High",
		"status": "In Progress",
		"creatorId": "u1",
		"assignedToId": {"id": "u2", "name": "Blake", "email": "b@example.com"}
	}`

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if task.ID != "t1" {
		t.Errorf("ID = %q, want t1", task.ID)
	}
	if task.Priority != PriorityHigh {
		t.Errorf("Priority = %q, want High", task.Priority)
	}
	if task.Status != StatusInProgress {
		t.Errorf("Status = %q, want In Progress", task.Status)
	}
	if task.Creator.ID() != "u1" {
		t.Errorf("Creator.ID = %q, want u1", task.Creator.ID())
	}
	if task.AssignedTo == nil {
		t.Fatal("AssignedTo is nil")
	}
	if u, ok := task.AssignedTo.User(); !ok || u.Name != "Blake" {
		t.Errorf("AssignedTo.User = %+v (ok=%v), want embedded Blake", u, ok)
	}
}

func TestFormDataOmitsUnsetFields(t *testing.T) {
	data, err := json.Marshal(TaskFormData{Title: "Just a title"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fields) != 1 {
		t.Errorf("payload carries %d fields (%v), want only title", len(fields), fields)
	}
	if fields["title"] != "Just a title" {
		t.Errorf("title = %v", fields["title"])
	}
}
