package api

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"taskhub/internal/api/auth"
	"taskhub/internal/api/middleware"
	"taskhub/internal/config"
	"taskhub/internal/pkg/metrics"
	"taskhub/internal/pkg/notify"
	"taskhub/internal/pkg/ratelimit"
	"taskhub/internal/reminder"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"taskhub/internal/model"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端以及 Gin 路由引擎。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	router    *gin.Engine
	auth      *auth.Handler
	userStore UserStore
	taskStore TaskStore
	reminder  *reminder.Reminder
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（登录限流与健康检查）
// 3. 初始化 Gin 路由引擎并注册路由
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	loginLimiter := ratelimit.NewRedisLimiter(rdb, logger, "taskhub:ratelimit:", cfg.Security.LoginRateLimit, cfg.Security.LoginRateBurst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())

	var rem *reminder.Reminder
	if cfg.Reminder.Enabled {
		mailer := notify.NewEmailNotifier(&cfg.Email, logger)
		if mailer.Configured() {
			rem = reminder.New(reminder.NewDBStore(db), mailer, logger, cfg.Reminder.Interval, cfg.Reminder.Window)
		} else {
			logger.Warn("reminder enabled but smtp not configured, reminder loop disabled")
		}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		router:    r,
		auth:      auth.NewHandler(auth.NewDBStore(db), cfg.Security.JWTSecret, cfg.Security.TokenTTL, cfg.Security.BcryptCost, loginLimiter, logger),
		userStore: dbUserStore{db: db},
		taskStore: dbTaskStore{db: db},
		reminder:  rem,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartReminder 启动任务到期提醒循环（未开启时为空操作）。
func (s *Server) StartReminder(ctx context.Context) {
	if s.reminder == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in reminder loop", slog.Any("panic", r))
			}
		}()
		s.reminder.Run(ctx)
	}()
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
//
// 需要角色限制的路由显式挂载 RequireRoles，没挂载即不限制。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	s.router.POST("/auth/register", s.auth.Register)
	s.router.POST("/auth/login", s.auth.Login)

	// 用户创建不要求登录（与注册一致，但不签发令牌）
	s.router.POST("/users", s.handleCreateUser)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.GET("/users", s.handleListUsers)
	authed.GET("/users/:id", s.handleGetUser)
	authed.PATCH("/users/:id", s.handleUpdateUser)
	authed.DELETE("/users/:id", middleware.RequireRoles(string(model.RoleAdmin)), s.handleDeleteUser)

	authed.GET("/tasks", s.handleListTasks)
	authed.POST("/tasks", s.handleCreateTask)
	authed.GET("/tasks/status/:status", s.handleListTasksByStatus)
	authed.GET("/tasks/:id", s.handleGetTask)
	authed.PATCH("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getUserID(c *gin.Context) int {
	return c.GetInt("userID")
}
