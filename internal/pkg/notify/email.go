package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"taskhub/internal/config"
	"taskhub/internal/model"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured 表示 SMTP 配置不完整，无法发送邮件。
var ErrNotConfigured = errors.New("smtp not configured")

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// Configured 报告 SMTP 配置是否完整。
func (n *EmailNotifier) Configured() bool {
	return n.cfg.SMTPHost != "" && n.cfg.SMTPUser != "" && n.cfg.FromEmail != ""
}

// SendDueReminder 发送任务到期提醒邮件。
//
// SMTP 未配置时返回 ErrNotConfigured 而不是静默跳过，
// 否则调用方会把任务标记为已提醒，补齐配置后也不再补发。
func (n *EmailNotifier) SendDueReminder(ctx context.Context, task *model.Task, toEmail string) error {
	if !n.Configured() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip reminder")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "[TaskHub] ⏰ 任务即将到期")
	m.SetBody("text/html", n.buildHTMLBody(task))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("due reminder sent", slog.String("to", toEmail), slog.Uint64("task_id", uint64(task.ID)))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(task *model.Task) string {
	dueLine := ""
	if task.DueDate != nil {
		dueLine = task.DueDate.Format("2006-01-02 15:04")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>TaskHub 任务提醒</h2>
    <p>你的任务即将到期：</p>
    <div style="font-size: 20px; font-weight: bold;">%s</div>
    <p>截止时间：%s</p>
    <p>%s</p>
  </div>
</body>
</html>`, html.EscapeString(task.Title), dueLine, html.EscapeString(task.Description))
}
