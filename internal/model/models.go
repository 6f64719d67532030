package model

import (
	"strings"
	"time"
)

// TaskStatus 表示任务状态。
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"   // 待办
	TaskStatusCompleted TaskStatus = "COMPLETED" // 已完成
)

// ParseTaskStatus 将字符串解析为任务状态（大小写不敏感）。
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case TaskStatusPending:
		return TaskStatusPending, true
	case TaskStatusCompleted:
		return TaskStatusCompleted, true
	default:
		return "", false
	}
}

// Task 表示一个待办任务。
//
// 每个任务归属唯一的创建者，所有读写都以创建者为范围：
// 其他用户访问时与任务不存在不可区分（返回 404 而不是 403）。
// 删除为软删除，IsActive 置 false 后行仍保留在表中。
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"` // 任务唯一标识
	CreatedAt time.Time `json:"created_at"`           // 创建时间
	UpdatedAt time.Time `json:"updated_at"`           // 更新时间

	UserID uint `gorm:"not null;index" json:"user_id"` // 所属用户 ID
	User   User `gorm:"foreignKey:UserID" json:"-"`    // 所属用户

	Title       string     `gorm:"type:varchar(191);not null" json:"title"`      // 标题
	Description string     `gorm:"type:text" json:"description,omitempty"`       // 描述（可选）
	Status      TaskStatus `gorm:"type:varchar(16);default:PENDING" json:"status"` // 状态: PENDING / COMPLETED
	DueDate     *time.Time `json:"due_date,omitempty"`                           // 截止时间（可选）

	IsActive   bool       `gorm:"default:true" json:"is_active"` // 软删除标记
	RemindedAt *time.Time `json:"-"`                             // 到期提醒发送时间（未发送为 null）
}
