package api

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ErrDuplicateEmail 表示邮箱唯一约束冲突。
var ErrDuplicateEmail = errors.New("duplicate email")

// UserStore 定义用户资源所需的存储能力。
//
// 查不到记录时返回 (nil, nil) 而不是错误，由调用方决定映射成 404 还是其他语义。
type UserStore interface {
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
	ListActiveUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error
}

// TaskStore 定义任务资源所需的存储能力。
type TaskStore interface {
	FindTaskByID(ctx context.Context, id uint) (*model.Task, error)
	ListActiveTasks(ctx context.Context, userID uint) ([]model.Task, error)
	ListActiveTasksByStatus(ctx context.Context, userID uint, status model.TaskStatus) ([]model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, id uint, updates map[string]interface{}) error
}

type dbUserStore struct {
	db *gorm.DB
}

func (s dbUserStore) FindUserByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id").
		Find(&users).Error
	return users, err
}

func (s dbUserStore) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if isDuplicateEntry(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (s dbUserStore) UpdateUser(ctx context.Context, id uint, updates map[string]interface{}) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(updates).Error
	if isDuplicateEntry(err) {
		return ErrDuplicateEmail
	}
	return err
}

type dbTaskStore struct {
	db *gorm.DB
}

func (s dbTaskStore) FindTaskByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := s.db.WithContext(ctx).First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s dbTaskStore) ListActiveTasks(ctx context.Context, userID uint) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id DESC").
		Find(&tasks).Error
	return tasks, err
}

func (s dbTaskStore) ListActiveTasksByStatus(ctx context.Context, userID uint, status model.TaskStatus) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND status = ?", userID, true, status).
		Order("id DESC").
		Find(&tasks).Error
	return tasks, err
}

func (s dbTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s dbTaskStore) UpdateTask(ctx context.Context, id uint, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(updates).Error
}

// isDuplicateEntry 判断是否为 MySQL 唯一约束冲突 (1062)。
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
