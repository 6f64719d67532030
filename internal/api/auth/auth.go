package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"
	"taskhub/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken 表示邮箱已被占用（数据库唯一约束冲突）。
var ErrEmailTaken = errors.New("email already registered")

// UserStore 定义认证所需的用户存储能力。
type UserStore interface {
	// FindByEmail 按邮箱查找用户，不存在时返回 (nil, nil)。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// CreateUser 创建用户，邮箱冲突时返回 ErrEmailTaken。
	CreateUser(ctx context.Context, user *model.User) error
}

// Handler 提供注册与登录接口。
type Handler struct {
	store      UserStore
	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
//
// 参数:
//
//	store: 用户存储
//	jwtSecret: JWT 签名密钥
//	tokenTTL: 令牌有效期
//	bcryptCost: bcrypt 工作因子（<=0 时使用库默认值）
//	limiter: 登录限流器（nil 表示不限流）
//	logger: 日志记录器
func NewHandler(store UserStore, jwtSecret string, tokenTTL time.Duration, bcryptCost int, limiter *ratelimit.Limiter, logger *slog.Logger) *Handler {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Handler{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		limiter:    limiter,
		logger:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type registerResponse struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
}

type customClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Login 校验凭证并签发 JWT。
//
// 账号不存在、已停用、密码错误三种情况返回完全相同的 401 响应，
// 避免暴露账号是否存在。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(c.Request.Context(), "login:"+c.ClientIP())
		if err != nil {
			// 限流器故障不阻断登录
			h.logger.Warn("login ratelimit check failed", slog.String("error", err.Error()))
		} else if !allowed {
			metrics.LoginThrottledTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
	}

	user, err := h.store.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("find user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	if user == nil || !user.IsActive {
		h.rejectCredentials(c)
		return
	}

	if user.Password == "" {
		// 凭证记录损坏，按不可匹配账号处理，只在服务端留痕
		h.logger.Error("user has no password hash set", slog.Uint64("user_id", uint64(user.ID)))
		h.rejectCredentials(c)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.rejectCredentials(c)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	h.logger.Info("user logged in", slog.Uint64("user_id", uint64(user.ID)), slog.String("role", string(user.RoleOrDefault())))
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token})
}

// Register 创建新用户并直接签发 JWT。
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
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

	existing, err := h.store.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("find user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query user failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	user := model.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		// 并发注册时预检查可能漏掉，唯一索引兜底
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("create user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	token, err := h.issueToken(&user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	h.logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("role", string(user.Role)))
	c.JSON(http.StatusCreated, registerResponse{AccessToken: token, User: &user})
}

func (h *Handler) rejectCredentials(c *gin.Context) {
	metrics.LoginFailuresTotal.Inc()
	c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
}

func (h *Handler) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
		Name:  user.Name,
		Roles: []string{string(user.RoleOrDefault())},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
