package api

import (
	"net/http"
	"strings"
	"time"

	"log/slog"

	"taskhub/internal/model"

	"github.com/gin-gonic/gin"
)

// createTaskRequest 创建任务的请求参数。
type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
}

// updateTaskRequest 更新任务的请求参数，所有字段均可选。
type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	IsActive    *bool      `json:"is_active"`
}

// loadOwnedTask 加载任务并做归属校验。
//
// 任务不存在、已软删除、或属于其他用户时统一返回 404，
// 避免通过响应差异探测他人任务是否存在。校验失败时已写入响应。
func (s *Server) loadOwnedTask(c *gin.Context, id uint) (*model.Task, bool) {
	task, err := s.taskStore.FindTaskByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("find task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query task failed"})
		return nil, false
	}
	if task == nil || !task.IsActive || task.UserID != uint(getUserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return nil, false
	}
	return task, true
}

// handleListTasks 返回当前用户的所有激活任务。
//
// GET /tasks
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.taskStore.ListActiveTasks(c.Request.Context(), uint(getUserID(c)))
	if err != nil {
		s.logger.Error("list tasks failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// handleListTasksByStatus 按状态过滤当前用户的任务。
//
// GET /tasks/status/:status
//
// 状态是独立的路径段，避免与 /tasks/:id 在路由层混用同一个参数。
func (s *Server) handleListTasksByStatus(c *gin.Context) {
	status, ok := model.ParseTaskStatus(c.Param("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	tasks, err := s.taskStore.ListActiveTasksByStatus(c.Request.Context(), uint(getUserID(c)), status)
	if err != nil {
		s.logger.Error("list tasks failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// handleGetTask 按 ID 查询当前用户的任务。
//
// GET /tasks/:id
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, ok := s.loadOwnedTask(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleCreateTask 创建任务，归属强制为当前用户。
//
// POST /tasks
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := model.TaskStatusPending
	if req.Status != "" {
		parsed, ok := model.ParseTaskStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		status = parsed
	}

	task := model.Task{
		UserID:      uint(getUserID(c)),
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		DueDate:     req.DueDate,
		IsActive:    true,
	}
	if err := s.taskStore.CreateTask(c.Request.Context(), &task); err != nil {
		s.logger.Error("create task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create task failed"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// handleUpdateTask 部分更新任务，只合并请求中出现的字段。
//
// PATCH /tasks/:id
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, ok := s.loadOwnedTask(c, id)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid title"})
			return
		}
		updates["title"] = title
		task.Title = title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		task.Description = *req.Description
	}
	if req.Status != nil {
		status, ok := model.ParseTaskStatus(*req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		updates["status"] = status
		task.Status = status
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
		task.DueDate = req.DueDate
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
		task.IsActive = *req.IsActive
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	// 显式带上 updated_at，响应体与落库的行保持一致
	now := time.Now()
	updates["updated_at"] = now
	task.UpdatedAt = now

	if err := s.taskStore.UpdateTask(c.Request.Context(), id, updates); err != nil {
		s.logger.Error("update task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update task failed"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// handleDeleteTask 软删除任务，行保留在表中。
//
// DELETE /tasks/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if _, ok := s.loadOwnedTask(c, id); !ok {
		return
	}

	if err := s.taskStore.UpdateTask(c.Request.Context(), id, map[string]interface{}{"is_active": false}); err != nil {
		s.logger.Error("delete task failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete task failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
