package auth

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

type dbUserStore struct {
	db *gorm.DB
}

// NewDBStore 返回基于 gorm 的 UserStore 实现。
func NewDBStore(db *gorm.DB) UserStore {
	return dbUserStore{db: db}
}

func (s dbUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s dbUserStore) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if isDuplicateEntry(err) {
		return ErrEmailTaken
	}
	return err
}

// isDuplicateEntry 判断是否为 MySQL 唯一约束冲突 (1062)。
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
