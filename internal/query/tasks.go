package query

import (
	"context"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/model"
)

// Queries is the sanctioned read/write surface over the cache. Reads
// go through cache.Get (dedup + staleness); mutations hit the API
// directly and invalidate the affected prefix on success.
type Queries struct {
	api   *api.Client
	cache *cache.Store
}

// New binds an API client and a cache store.
func New(c *api.Client, s *cache.Store) *Queries {
	return &Queries{api: c, cache: s}
}

// Cache exposes the underlying store for subscribers (the UI listens
// on its event channel); direct entry mutation stays off-limits.
func (q *Queries) Cache() *cache.Store {
	return q.cache
}

// Tasks returns a page of the main task list for the given filters.
func (q *Queries) Tasks(ctx context.Context, filters model.TaskFilters) (*api.TaskPage, error) {
	v, err := q.cache.Get(ctx, TaskListKey(filters), func(ctx context.Context) (interface{}, error) {
		return q.api.ListTasks(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.TaskPage), nil
}

// Task returns a single task by identifier.
func (q *Queries) Task(ctx context.Context, id string) (*model.Task, error) {
	v, err := q.cache.Get(ctx, TaskDetailKey(id), func(ctx context.Context) (interface{}, error) {
		return q.api.GetTask(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Task), nil
}

// AssignedTasks returns the assigned-to-me dashboard page.
func (q *Queries) AssignedTasks(ctx context.Context, filters model.TaskFilters) (*api.TaskPage, error) {
	v, err := q.cache.Get(ctx, AssignedTasksKey(filters), func(ctx context.Context) (interface{}, error) {
		return q.api.AssignedTasks(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.TaskPage), nil
}

// CreatedTasks returns the created-by-me dashboard page.
func (q *Queries) CreatedTasks(ctx context.Context, filters model.TaskFilters) (*api.TaskPage, error) {
	v, err := q.cache.Get(ctx, CreatedTasksKey(filters), func(ctx context.Context) (interface{}, error) {
		return q.api.CreatedTasks(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.TaskPage), nil
}

// OverdueTasks returns the overdue dashboard page.
func (q *Queries) OverdueTasks(ctx context.Context, filters model.TaskFilters) (*api.TaskPage, error) {
	v, err := q.cache.Get(ctx, OverdueTasksKey(filters), func(ctx context.Context) (interface{}, error) {
		return q.api.OverdueTasks(ctx, filters)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.TaskPage), nil
}

// CreateTask creates a task. On success the entire tasks prefix is
// invalidated: a new task may affect any list or filter view. Failed
// mutations surface their error without retrying.
func (q *Queries) CreateTask(ctx context.Context, data model.TaskFormData) (*model.Task, error) {
	task, err := q.api.CreateTask(ctx, data)
	if err != nil {
		return nil, err
	}
	q.cache.InvalidatePrefix(KeyTasks)
	return task, nil
}

// UpdateTask applies a partial update. On success the tasks prefix is
// invalidated and the returned entity is written through to its
// detail key, so an open detail view updates without a round trip.
func (q *Queries) UpdateTask(ctx context.Context, id string, data model.TaskFormData) (*model.Task, error) {
	task, err := q.api.UpdateTask(ctx, id, data)
	if err != nil {
		return nil, err
	}
	q.cache.InvalidatePrefix(KeyTasks)
	q.cache.Set(TaskDetailKey(task.ID), task)
	return task, nil
}

// DeleteTask removes a task and invalidates the tasks prefix.
func (q *Queries) DeleteTask(ctx context.Context, id string) error {
	if err := q.api.DeleteTask(ctx, id); err != nil {
		return err
	}
	q.cache.InvalidatePrefix(KeyTasks)
	return nil
}
