package query_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/query"
	"github.com/nhle/taskboard/tests/testutil"
)

func newQueries(t *testing.T, srv *testutil.Server) *query.Queries {
	t.Helper()
	client, err := api.NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return query.New(client, cache.New(time.Minute, nil))
}

func handleTaskList(srv *testutil.Server, tasks []model.Task) {
	srv.Handle(http.MethodGet, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		testutil.WritePage(w, tasks, api.Pagination{
			Total: len(tasks), Page: 1, Limit: 10, TotalPages: 1,
		})
	})
}

func TestTasksAreCachedPerFilterSet(t *testing.T) {
	srv := testutil.NewServer(t)
	handleTaskList(srv, []model.Task{{ID: "t1", Title: "One"}})
	q := newQueries(t, srv)
	ctx := context.Background()

	f1 := model.TaskFilters{Page: 1}
	for i := 0; i < 3; i++ {
		page, err := q.Tasks(ctx, f1)
		if err != nil {
			t.Fatalf("Tasks: %v", err)
		}
		if len(page.Tasks) != 1 || page.Tasks[0].ID != "t1" {
			t.Fatalf("page = %+v", page)
		}
	}
	if n := srv.Hits(http.MethodGet, "/api/tasks"); n != 1 {
		t.Errorf("server saw %d list requests for one filter set, want 1", n)
	}

	// A different filter combination is a different cache entry.
	if _, err := q.Tasks(ctx, model.TaskFilters{Page: 2}); err != nil {
		t.Fatalf("Tasks page 2: %v", err)
	}
	if n := srv.Hits(http.MethodGet, "/api/tasks"); n != 2 {
		t.Errorf("server saw %d list requests across two filter sets, want 2", n)
	}
}

func TestCreateTaskInvalidatesLists(t *testing.T) {
	srv := testutil.NewServer(t)
	handleTaskList(srv, nil)
	srv.Handle(http.MethodPost, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, model.Task{ID: "t2", Title: "Created"})
	})
	q := newQueries(t, srv)
	ctx := context.Background()

	f := model.TaskFilters{Page: 1}
	if _, err := q.Tasks(ctx, f); err != nil {
		t.Fatalf("seed list: %v", err)
	}

	task, err := q.CreateTask(ctx, model.TaskFormData{Title: "Created"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID != "t2" {
		t.Errorf("created task = %+v", task)
	}
	if !q.Cache().IsStale(query.TaskListKey(f)) {
		t.Error("task list still fresh after create")
	}
}

func TestUpdateTaskWritesThroughDetail(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodPatch, "/api/tasks/t3", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, model.Task{ID: "t3", Title: "Renamed"})
	})
	q := newQueries(t, srv)
	ctx := context.Background()

	updated, err := q.UpdateTask(ctx, "t3", model.TaskFormData{Title: "Renamed"})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("updated = %+v", updated)
	}

	// The detail read resolves from the write-through, no GET.
	task, err := q.Task(ctx, "t3")
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if task.Title != "Renamed" {
		t.Errorf("detail = %+v, want the written-through entity", task)
	}
	if n := srv.Hits(http.MethodGet, "/api/tasks/t3"); n != 0 {
		t.Errorf("detail endpoint hit %d times, want 0", n)
	}
}

func TestFailedMutationLeavesCacheFresh(t *testing.T) {
	srv := testutil.NewServer(t)
	handleTaskList(srv, nil)
	srv.Handle(http.MethodPost, "/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusBadRequest, "Title is required")
	})
	q := newQueries(t, srv)
	ctx := context.Background()

	f := model.TaskFilters{Page: 1}
	if _, err := q.Tasks(ctx, f); err != nil {
		t.Fatalf("seed list: %v", err)
	}

	if _, err := q.CreateTask(ctx, model.TaskFormData{}); err == nil {
		t.Fatal("CreateTask succeeded, want validation error")
	}
	if q.Cache().IsStale(query.TaskListKey(f)) {
		t.Error("failed mutation invalidated the list")
	}
}

func TestMarkReadInvalidatesFeedAndBadge(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.Handle(http.MethodGet, "/api/notifications", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, []model.Notification{{ID: "n1"}})
	})
	srv.Handle(http.MethodGet, "/api/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, map[string]int{"count": 1})
	})
	srv.Handle(http.MethodPatch, "/api/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, nil)
	})
	q := newQueries(t, srv)
	ctx := context.Background()

	if _, err := q.Notifications(ctx, false); err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if _, err := q.UnreadCount(ctx); err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}

	if err := q.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !q.Cache().IsStale(query.NotificationListKey(false)) {
		t.Error("feed still fresh after mark-read")
	}
	if !q.Cache().IsStale(query.KeyNotificationCount) {
		t.Error("badge count still fresh after mark-read")
	}
}
