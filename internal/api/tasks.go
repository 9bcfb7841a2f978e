package api

import (
	"context"
	"net/url"

	"github.com/nhle/taskboard/internal/model"
)

// TaskPage is one page of a task collection plus its pagination
// window.
type TaskPage struct {
	Tasks      []model.Task
	Pagination Pagination
}

// ListTasks fetches a page of tasks matching the filters.
func (c *Client) ListTasks(ctx context.Context, filters model.TaskFilters) (*TaskPage, error) {
	return c.taskPage(ctx, "/tasks", filters.Query())
}

// AssignedTasks fetches the dashboard view of tasks assigned to the
// current user.
func (c *Client) AssignedTasks(ctx context.Context, filters model.TaskFilters) (*TaskPage, error) {
	return c.taskPage(ctx, "/tasks/dashboard/assigned", filters.Query())
}

// CreatedTasks fetches the dashboard view of tasks created by the
// current user.
func (c *Client) CreatedTasks(ctx context.Context, filters model.TaskFilters) (*TaskPage, error) {
	return c.taskPage(ctx, "/tasks/dashboard/created", filters.Query())
}

// OverdueTasks fetches the dashboard view of overdue tasks.
func (c *Client) OverdueTasks(ctx context.Context, filters model.TaskFilters) (*TaskPage, error) {
	return c.taskPage(ctx, "/tasks/dashboard/overdue", filters.Query())
}

func (c *Client) taskPage(ctx context.Context, path string, query url.Values) (*TaskPage, error) {
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var tasks []model.Task
	pagination, err := c.GetPage(ctx, path, &tasks)
	if err != nil {
		return nil, err
	}
	page := &TaskPage{Tasks: tasks}
	if pagination != nil {
		page.Pagination = *pagination
	}
	return page, nil
}

// GetTask fetches a single task by identifier.
func (c *Client) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.Get(ctx, "/tasks/"+id, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task and returns the server's copy.
func (c *Client) CreateTask(ctx context.Context, data model.TaskFormData) (*model.Task, error) {
	var task model.Task
	if err := c.Post(ctx, "/tasks", data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask applies a partial update and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, id string, data model.TaskFormData) (*model.Task, error) {
	var task model.Task
	if err := c.Patch(ctx, "/tasks/"+id, data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Delete(ctx, "/tasks/"+id)
}
