package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserRef is a reference to a user that may arrive either as a bare
// identifier or as an embedded user summary, depending on which
// endpoint produced it. The union is resolved once at decode time;
// callers use the accessors instead of inspecting raw JSON shapes.
type UserRef struct {
	id   string
	user *User
}

// RefToUser builds a bare-identifier reference.
func RefToUser(id string) UserRef {
	return UserRef{id: id}
}

// EmbedUser builds a reference carrying the full user summary.
func EmbedUser(u User) UserRef {
	return UserRef{id: u.ID, user: &u}
}

// ID returns the referenced user's identifier. Always available.
func (r UserRef) ID() string {
	return r.id
}

// User returns the embedded user summary when the endpoint supplied
// one. The second return is false for bare references.
func (r UserRef) User() (User, bool) {
	if r.user == nil {
		return User{}, false
	}
	return *r.user, true
}

// DisplayName returns the embedded user's name, falling back to the
// bare identifier.
func (r UserRef) DisplayName() string {
	if r.user != nil && r.user.Name != "" {
		return r.user.Name
	}
	return r.id
}

// IsZero reports whether the reference is empty.
func (r UserRef) IsZero() bool {
	return r.id == "" && r.user == nil
}

// UnmarshalJSON decodes either a JSON string (bare identifier) or a
// JSON object (embedded user).
func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decoding user reference: %w", err)
		}
		*r = UserRef{id: id}
		return nil
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return fmt.Errorf("decoding embedded user: %w", err)
	}
	*r = UserRef{id: u.ID, user: &u}
	return nil
}

// MarshalJSON encodes the reference the way it arrived: embedded
// references round-trip the full summary, bare ones the identifier.
func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.user != nil {
		return json.Marshal(r.user)
	}
	return json.Marshal(r.id)
}

// TaskRef is the same tagged union for task references carried by
// notifications: either a bare task identifier or the full task.
type TaskRef struct {
	id   string
	task *Task
}

// ID returns the referenced task's identifier.
func (r TaskRef) ID() string {
	return r.id
}

// Task returns the embedded task when the endpoint supplied one.
func (r TaskRef) Task() (Task, bool) {
	if r.task == nil {
		return Task{}, false
	}
	return *r.task, true
}

// UnmarshalJSON decodes either a JSON string or an embedded task.
func (r *TaskRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = TaskRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("decoding task reference: %w", err)
		}
		*r = TaskRef{id: id}
		return nil
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("decoding embedded task: %w", err)
	}
	*r = TaskRef{id: t.ID, task: &t}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (r TaskRef) MarshalJSON() ([]byte, error) {
	if r.task != nil {
		return json.Marshal(r.task)
	}
	return json.Marshal(r.id)
}
