package reminder

import (
	"context"
	"time"

	"taskhub/internal/model"

	"gorm.io/gorm"
)

type dbStore struct {
	db *gorm.DB
}

// NewDBStore 返回基于 gorm 的 Store 实现。
func NewDBStore(db *gorm.DB) Store {
	return dbStore{db: db}
}

func (s dbStore) ListDueSoon(ctx context.Context, window time.Duration) ([]DueTask, error) {
	now := time.Now()
	deadline := now.Add(window)

	var tasks []model.Task
	err := s.db.WithContext(ctx).
		Joins("User").
		Where("tasks.is_active = ? AND tasks.status = ?", true, model.TaskStatusPending).
		Where("tasks.due_date IS NOT NULL AND tasks.due_date <= ? AND tasks.reminded_at IS NULL", deadline).
		Where("`User`.is_active = ?", true).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	due := make([]DueTask, 0, len(tasks))
	for _, task := range tasks {
		due = append(due, DueTask{Task: task, Email: task.User.Email})
	}
	return due, nil
}

func (s dbStore) MarkReminded(ctx context.Context, taskID uint, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.Task{}).
		Where("id = ?", taskID).
		Update("reminded_at", at).Error
}
