package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"taskhub/internal/config"
	"taskhub/internal/model"

	"github.com/gin-gonic/gin"
)

// fakeTaskStore 是一个基于内存 map 的 TaskStore 实现。
type fakeTaskStore struct {
	tasks  map[uint]*model.Task
	nextID uint
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[uint]*model.Task{}, nextID: 1}
}

func (f *fakeTaskStore) FindTaskByID(ctx context.Context, id uint) (*model.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskStore) ListActiveTasks(ctx context.Context, userID uint) ([]model.Task, error) {
	out := []model.Task{}
	for _, task := range f.tasks {
		if task.UserID == userID && task.IsActive {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) ListActiveTasksByStatus(ctx context.Context, userID uint, status model.TaskStatus) ([]model.Task, error) {
	out := []model.Task{}
	for _, task := range f.tasks {
		if task.UserID == userID && task.IsActive && task.Status == status {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = f.nextID
	f.nextID++
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskStore) UpdateTask(ctx context.Context, id uint, updates map[string]interface{}) error {
	task, ok := f.tasks[id]
	if !ok {
		return nil
	}
	if v, ok := updates["title"]; ok {
		task.Title = v.(string)
	}
	if v, ok := updates["description"]; ok {
		task.Description = v.(string)
	}
	if v, ok := updates["status"]; ok {
		task.Status = v.(model.TaskStatus)
	}
	if v, ok := updates["due_date"]; ok {
		due := v.(time.Time)
		task.DueDate = &due
	}
	if v, ok := updates["is_active"]; ok {
		task.IsActive = v.(bool)
	}
	if v, ok := updates["updated_at"]; ok {
		task.UpdatedAt = v.(time.Time)
	}
	return nil
}

func newTestServer(taskStore TaskStore, userStore UserStore) *Server {
	return &Server{
		cfg:       &config.Config{Security: config.SecurityConfig{BcryptCost: 4}},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		taskStore: taskStore,
		userStore: userStore,
	}
}

// newTaskRouter 把处理函数挂到路由上，并模拟认证中间件写入的身份。
func newTaskRouter(s *Server, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	identity := func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userName", "tester")
		c.Set("roles", []string{"USER"})
	}
	r.GET("/tasks", identity, s.handleListTasks)
	r.POST("/tasks", identity, s.handleCreateTask)
	r.GET("/tasks/status/:status", identity, s.handleListTasksByStatus)
	r.GET("/tasks/:id", identity, s.handleGetTask)
	r.PATCH("/tasks/:id", identity, s.handleUpdateTask)
	r.DELETE("/tasks/:id", identity, s.handleDeleteTask)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedTask(store *fakeTaskStore, userID uint, title string) *model.Task {
	task := &model.Task{
		UserID:   userID,
		Title:    title,
		Status:   model.TaskStatusPending,
		IsActive: true,
	}
	_ = store.CreateTask(context.Background(), task)
	return task
}

func TestCreateTask_DefaultsToPending(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodPost, "/tasks", map[string]interface{}{
		"title":       "write report",
		"description": "quarterly numbers",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Status != model.TaskStatusPending {
		t.Fatalf("expected default status PENDING, got %s", created.Status)
	}
	if created.UserID != 1 {
		t.Fatalf("owner must be the caller, got %d", created.UserID)
	}
}

func TestCreateTask_InvalidStatus(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodPost, "/tasks", map[string]interface{}{
		"title":  "x",
		"status": "DOING",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetTask_OwnershipIndistinguishableFromAbsence(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	task := seedTask(store, 1, "owned by user 1")

	owner := newTaskRouter(s, 1)
	w := doJSON(owner, http.MethodGet, "/tasks/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("owner expected 200, got %d", w.Code)
	}

	other := newTaskRouter(s, 2)
	wOther := doJSON(other, http.MethodGet, "/tasks/1", nil)
	if wOther.Code != http.StatusNotFound {
		t.Fatalf("other user expected 404, got %d", wOther.Code)
	}
	wMissing := doJSON(other, http.MethodGet, "/tasks/999", nil)
	if wMissing.Code != http.StatusNotFound {
		t.Fatalf("missing task expected 404, got %d", wMissing.Code)
	}
	// 他人任务与不存在的任务响应必须一致
	if wOther.Body.String() != wMissing.Body.String() {
		t.Fatalf("ownership violation must look like absence: %q vs %q", wOther.Body.String(), wMissing.Body.String())
	}
	_ = task
}

func TestDeleteTask_SoftDelete(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "to be deleted")
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodDelete, "/tasks/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// 行仍然存在，仅 is_active 翻转
	stored := store.tasks[1]
	if stored == nil {
		t.Fatalf("row must not be purged")
	}
	if stored.IsActive {
		t.Fatalf("expected is_active=false after soft delete")
	}

	// 所有者后续查询返回 404
	wGet := doJSON(r, http.MethodGet, "/tasks/1", nil)
	if wGet.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after soft delete, got %d", wGet.Code)
	}
}

func TestUpdateTask_PartialMerge(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "original title")
	store.tasks[1].Description = "original description"
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodPatch, "/tasks/1", map[string]interface{}{
		"status": "COMPLETED",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored := store.tasks[1]
	if stored.Status != model.TaskStatusCompleted {
		t.Fatalf("expected status COMPLETED, got %s", stored.Status)
	}
	if stored.Title != "original title" || stored.Description != "original description" {
		t.Fatalf("untouched fields must survive a partial update: %+v", stored)
	}
}

func TestUpdateTask_RefreshesUpdatedAt(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "x")
	stale := time.Now().Add(-time.Hour)
	store.tasks[1].UpdatedAt = stale
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodPatch, "/tasks/1", map[string]interface{}{
		"status": "COMPLETED",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.UpdatedAt.After(stale) {
		t.Fatalf("response updated_at must reflect the write, got %s", resp.UpdatedAt)
	}
	if !store.tasks[1].UpdatedAt.After(stale) {
		t.Fatalf("stored updated_at must reflect the write, got %s", store.tasks[1].UpdatedAt)
	}
}

func TestUpdateTask_NoFields(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "x")
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodPatch, "/tasks/1", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateTask_NotOwned(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "owned by user 1")
	r := newTaskRouter(s, 2)

	w := doJSON(r, http.MethodPatch, "/tasks/1", map[string]interface{}{
		"title": "hijacked",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if store.tasks[1].Title != "owned by user 1" {
		t.Fatalf("task must not be modified by a non-owner")
	}
}

func TestListTasksByStatus(t *testing.T) {
	store := newFakeTaskStore()
	s := newTestServer(store, nil)
	seedTask(store, 1, "pending one")
	done := seedTask(store, 1, "done one")
	store.tasks[done.ID].Status = model.TaskStatusCompleted
	seedTask(store, 2, "someone else's")
	r := newTaskRouter(s, 1)

	w := doJSON(r, http.MethodGet, "/tasks/status/COMPLETED", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var tasks []model.Task
	if err := json.Unmarshal(w.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "done one" {
		t.Fatalf("expected exactly the completed task, got %+v", tasks)
	}

	wBad := doJSON(r, http.MethodGet, "/tasks/status/ARCHIVED", nil)
	if wBad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", wBad.Code)
	}
}
