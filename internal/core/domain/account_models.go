// Package domain file: internal/core/domain/account_models.go
package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultAvatar 新用户未提供头像时使用
const DefaultAvatar = "https://cdn.pixabay.com/photo/2015/10/05/22/37/blank-profile-picture-973460_1280.png"

// User 对外暴露的用户信息，永远不包含密码哈希
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

// UserUpdate 部分更新，nil 字段保持不变；提供的用户名、邮箱与密码不能为空
type UserUpdate struct {
	Username *string `json:"username" binding:"omitempty,min=1"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Avatar   *string `json:"avatar"`
	Password *string `json:"password" binding:"omitempty,min=1"`
}

// ContactMessage 联系表单记录
type ContactMessage struct {
	ID        string    `json:"_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry 管理员操作审计记录
type AuditEntry struct {
	ID          string    `json:"_id"`
	Action      string    `json:"action"`
	TargetID    string    `json:"target_id"`
	Description string    `json:"description"`
	PerformedBy string    `json:"performed_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// RoleCount 按角色聚合的用户数
type RoleCount struct {
	Role  string `json:"_id"`
	Value int    `json:"value"`
}

// DailyCount 某一天的联系消息数
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AdminStats 管理后台统计面板
type AdminStats struct {
	TotalUsers      int          `json:"totalUsers"`
	TotalMessages   int          `json:"totalMessages"`
	TotalDatasets   int          `json:"totalDatasets"`
	UserRoles       []RoleCount  `json:"userRoles"`
	ContactActivity []DailyCount `json:"contactActivity"`
}
