package model

import (
	"strings"
	"time"
)

// Role 表示用户角色。
type Role string

const (
	RoleUser  Role = "USER"  // 普通用户
	RoleAdmin Role = "ADMIN" // 管理员
)

// ParseRole 将字符串解析为角色（大小写不敏感）。
//
// 返回值:
//
//	Role: 解析后的角色
//	bool: 是否为合法角色
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// User 表示系统用户。
//
// 密码只保存 bcrypt 哈希，任何响应都不会携带该字段。
// 用户不做物理删除，注销时仅将 IsActive 置为 false。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                       // 用户 ID
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`     // 显示名称
	Email     string    `gorm:"type:varchar(191);uniqueIndex" json:"email"` // 邮箱（唯一）
	Password  string    `gorm:"not null" json:"-"`                          // bcrypt 哈希
	Role      Role      `gorm:"type:varchar(16);default:USER" json:"role"`  // 角色: USER / ADMIN
	IsActive  bool      `gorm:"default:true" json:"is_active"`              // 软删除标记
	CreatedAt time.Time `json:"created_at"`                                 // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                 // 更新时间

	Tasks []Task `gorm:"foreignKey:UserID" json:"-"` // 用户创建的任务
}

// RoleOrDefault 返回用户角色，未设置时回退为 USER。
func (u *User) RoleOrDefault() Role {
	if u.Role == "" {
		return RoleUser
	}
	return u.Role
}
