package reminder

import (
	"context"
	"time"

	"log/slog"

	"taskhub/internal/model"
	"taskhub/internal/pkg/metrics"
	"taskhub/internal/pkg/notify"
)

// DueTask 是一条待提醒记录：任务及其所属用户的邮箱。
type DueTask struct {
	Task  model.Task
	Email string
}

// Store 定义提醒循环所需的存储能力。
type Store interface {
	// ListDueSoon 返回即将在 window 内到期、尚未提醒过的激活任务。
	ListDueSoon(ctx context.Context, window time.Duration) ([]DueTask, error)
	// MarkReminded 记录提醒发送时间，避免重复提醒。
	MarkReminded(ctx context.Context, taskID uint, at time.Time) error
}

// Reminder 周期性扫描临近截止时间的任务并发送邮件提醒。
//
// 单 goroutine 循环，由 ctx 控制停止。发送失败只记日志，
// 下个周期会重新扫描到同一条任务。
type Reminder struct {
	store    Store
	notifier notify.Notifier
	logger   *slog.Logger
	interval time.Duration
	window   time.Duration
}

// New 创建一个提醒循环实例。
//
// 参数:
//
//	store: 任务存储
//	notifier: 邮件通知器
//	logger: 日志记录器
//	interval: 扫描间隔（<=0 时使用 5 分钟）
//	window: 提前提醒窗口（<=0 时使用 24 小时）
func New(store Store, notifier notify.Notifier, logger *slog.Logger, interval, window time.Duration) *Reminder {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Reminder{
		store:    store,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		window:   window,
	}
}

// Run 启动提醒循环，阻塞直到 ctx 取消。
func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reminder loop started",
		slog.String("interval", r.interval.String()),
		slog.String("window", r.window.String()),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reminder loop stopped")
			return
		case <-ticker.C:
			r.scanOnce(ctx)
		}
	}
}

// scanOnce 执行一轮扫描与发送。
func (r *Reminder) scanOnce(ctx context.Context) {
	due, err := r.store.ListDueSoon(ctx, r.window)
	if err != nil {
		r.logger.Error("list due tasks failed", slog.String("error", err.Error()))
		return
	}

	for _, item := range due {
		if err := r.notifier.SendDueReminder(ctx, &item.Task, item.Email); err != nil {
			metrics.ReminderErrorsTotal.Inc()
			r.logger.Warn("send reminder failed",
				slog.Uint64("task_id", uint64(item.Task.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := r.store.MarkReminded(ctx, item.Task.ID, time.Now()); err != nil {
			r.logger.Warn("mark reminded failed",
				slog.Uint64("task_id", uint64(item.Task.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		metrics.RemindersSentTotal.Inc()
	}
}
