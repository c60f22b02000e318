// Package port file: internal/core/port/service.go
package port

import (
	"context"
	"errors"
	"time"

	"ExoGate/internal/core/domain"
)

// 账户与管理平面的标准错误
var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrUserExists         = errors.New("用户已存在")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrPermissionDenied   = errors.New("权限不足，操作被拒绝")
	ErrInvalidRole        = errors.New("无效的角色")
	ErrEmptyPassword      = errors.New("密码不能为空")
)

// UserStore 用户文档的 CRUD
type UserStore interface {
	Create(ctx context.Context, username, email, password, avatar, role string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, string, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
	UpdateRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByRole(ctx context.Context) ([]domain.RoleCount, error)
}

// ContactStore 联系消息存储
type ContactStore interface {
	Add(ctx context.Context, msg domain.ContactMessage) (*domain.ContactMessage, error)
	List(ctx context.Context) ([]domain.ContactMessage, error)
	Count(ctx context.Context) (int, error)
	CountBetween(ctx context.Context, from, to time.Time) (int, error)
}

// AuditStore 管理员审计日志
type AuditStore interface {
	Record(ctx context.Context, action, targetID, description, performedBy string) error
	Latest(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// SettingsStore 单文档形式的站点设置
type SettingsStore interface {
	Get(ctx context.Context) (map[string]interface{}, error)
	Merge(ctx context.Context, patch map[string]interface{}) (map[string]interface{}, error)
}
