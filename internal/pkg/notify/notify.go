package notify

import (
	"context"

	"taskhub/internal/model"
)

// Notifier 定义任务到期提醒的通知接口。
type Notifier interface {
	// SendDueReminder 向任务所属用户发送到期提醒。
	//
	// 参数:
	//   ctx: 上下文
	//   task: 即将到期的任务
	//   toEmail: 接收邮箱
	SendDueReminder(ctx context.Context, task *model.Task, toEmail string) error
}
