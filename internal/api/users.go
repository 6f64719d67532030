package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"taskhub/internal/model"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// createUserRequest 创建用户的请求参数。
type createUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

// updateUserRequest 更新用户的请求参数，所有字段均可选。
//
// 设置新密码必须附带当前密码；附带了当前密码的其他修改同样会触发校验。
type updateUserRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email" binding:"omitempty,email"`
	Role            *string `json:"role"`
	IsActive        *bool   `json:"is_active"`
	CurrentPassword *string `json:"current_password"`
	NewPassword     *string `json:"new_password" binding:"omitempty,min=8"`
}

// handleListUsers 返回所有激活状态的用户。
//
// GET /users
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.userStore.ListActiveUsers(c.Request.Context())
	if err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// handleGetUser 按 ID 查询用户。
//
// GET /users/:id
func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, err := s.userStore.FindUserByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("find user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// handleCreateUser 创建新用户（不签发令牌）。
//
// POST /users
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := model.RoleUser
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		role = parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     role,
		IsActive: active,
	}
	if err := s.userStore.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error("create user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	s.logger.Info("user created", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, user)
}

// handleUpdateUser 部分更新用户资料。
//
// PATCH /users/:id
//
// 密码修改规则：
//  1. 提供 new_password 时必须同时提供 current_password，否则 400
//  2. 只提供 current_password 但修改了其他字段时，同样校验当前密码
//  3. 两者都未提供时跳过校验（令牌本身已证明近期登录过）
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := s.userStore.FindUserByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("find user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	otherChanges := req.Name != nil || req.Email != nil || req.Role != nil || req.IsActive != nil
	needsPasswordCheck := false
	if req.NewPassword != nil {
		if req.CurrentPassword == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current password is required to set a new password"})
			return
		}
		needsPasswordCheck = true
	} else if req.CurrentPassword != nil && otherChanges {
		needsPasswordCheck = true
	}

	if needsPasswordCheck {
		if err := bcrypt.CompareHashAndPassword([]byte(existing.Password), []byte(*req.CurrentPassword)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid current password"})
			return
		}
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
		existing.Name = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
		existing.Email = *req.Email
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
		existing.IsActive = *req.IsActive
	}
	if req.Role != nil {
		role, ok := model.ParseRole(*req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		updates["role"] = role
		existing.Role = role
	}
	if req.NewPassword != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), s.bcryptCost())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
			return
		}
		updates["password"] = string(hash)
		existing.Password = string(hash)
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, existing)
		return
	}

	// 显式带上 updated_at，响应体与落库的行保持一致
	now := time.Now()
	updates["updated_at"] = now
	existing.UpdatedAt = now

	if err := s.userStore.UpdateUser(c.Request.Context(), id, updates); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		s.logger.Error("update user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}

	c.JSON(http.StatusOK, existing)
}

// handleDeleteUser 软删除用户（仅 ADMIN）。
//
// DELETE /users/:id
func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	existing, err := s.userStore.FindUserByID(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("find user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if err := s.userStore.UpdateUser(c.Request.Context(), id, map[string]interface{}{"is_active": false}); err != nil {
		s.logger.Error("delete user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
		return
	}

	s.logger.Info("user deactivated", slog.Uint64("user_id", uint64(id)))
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) bcryptCost() int {
	cost := s.cfg.Security.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return cost
}

// parseIDParam 解析路径中的 :id，非法时直接写入 400 响应。
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
