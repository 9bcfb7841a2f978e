package model

import (
	"fmt"
	"net/url"
	"strconv"
)

// SortField is the set of fields task lists can be sorted by.
type SortField string

const (
	SortByDueDate   SortField = "dueDate"
	SortByCreatedAt SortField = "createdAt"
	SortByPriority  SortField = "priority"
	SortByStatus    SortField = "status"
	SortByTitle     SortField = "title"
)

// SortOrder is a sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// TaskFilters holds every dimension a task list query can vary on.
// The zero value means "server defaults".
type TaskFilters struct {
	Page      int
	Limit     int
	SortBy    SortField
	SortOrder SortOrder
	Status    TaskStatus
	Priority  TaskPriority
}

// Query encodes the filters as URL query parameters, omitting unset
// dimensions so the server applies its own defaults.
func (f TaskFilters) Query() url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.SortBy != "" {
		q.Set("sortBy", string(f.SortBy))
	}
	if f.SortOrder != "" {
		q.Set("sortOrder", string(f.SortOrder))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	return q
}

// Signature returns a canonical string covering every filter
// dimension. Two filter sets produce the same signature iff they are
// identical, so distinct combinations never collide as cache keys.
func (f TaskFilters) Signature() string {
	return fmt.Sprintf("p=%d,l=%d,sb=%s,so=%s,st=%s,pr=%s",
		f.Page, f.Limit, f.SortBy, f.SortOrder, f.Status, f.Priority)
}
