// file: internal/service/user_store.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserStoreImpl 基于 sqlite 的用户存储
type UserStoreImpl struct {
	db *sql.DB
}

// 静态断言，确保 UserStoreImpl 实现了接口
var _ port.UserStore = (*UserStoreImpl)(nil)

// NewUserStore 创建用户存储
func NewUserStore(db *sql.DB) (*UserStoreImpl, error) {
	if db == nil {
		return nil, fmt.Errorf("UserStore 初始化失败: db 实例不能为 nil")
	}
	return &UserStoreImpl{db: db}, nil
}

const userColumns = "id, username, email, avatar, role"

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Role); err != nil {
		return nil, err
	}
	return &u, nil
}

// hashPassword 空密码保存为空哈希，这类账户无法通过密码登录
func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(hash), nil
}

// Create 新建用户，邮箱重复时返回 port.ErrUserExists
func (s *UserStoreImpl) Create(ctx context.Context, username, email, password, avatar, role string) (*domain.User, error) {
	if avatar == "" {
		avatar = domain.DefaultAvatar
	}
	if role == "" {
		role = domain.RoleUser
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{ID: uuid.NewString(), Username: username, Email: email, Avatar: avatar, Role: role}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, email, password_hash, avatar, role) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, hash, u.Avatar, u.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("邮箱 '%s': %w", email, port.ErrUserExists)
		}
		return nil, fmt.Errorf("插入用户 '%s' 失败: %w", email, err)
	}
	return u, nil
}

// FindByEmail 同时返回密码哈希，仅供认证流程使用
func (s *UserStoreImpl) FindByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	var (
		u    domain.User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", port.ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("按邮箱查询用户失败: %w", err)
	}
	return &u, hash, nil
}

func (s *UserStoreImpl) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户 '%s' 失败: %w", id, err)
	}
	return u, nil
}

// List 按创建时间返回全部用户
func (s *UserStoreImpl) List(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			slog.Warn("关闭 rows 失败 (用户列表查询)", "error", errClose)
		}
	}()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描用户失败: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历用户列表失败: %w", err)
	}
	return users, nil
}

// Update 只修改非 nil 字段；密码会被重新哈希
func (s *UserStoreImpl) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	var (
		sets []string
		args []interface{}
	)
	if upd.Username != nil {
		sets, args = append(sets, "username = ?"), append(args, *upd.Username)
	}
	if upd.Email != nil {
		sets, args = append(sets, "email = ?"), append(args, *upd.Email)
	}
	if upd.Avatar != nil {
		sets, args = append(sets, "avatar = ?"), append(args, *upd.Avatar)
	}
	if upd.Password != nil {
		// 空哈希只留给外部登录创建的账户，已有账户不能改成空密码
		if *upd.Password == "" {
			return nil, port.ErrEmptyPassword
		}
		hash, err := hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		sets, args = append(sets, "password_hash = ?"), append(args, hash)
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, port.ErrUserExists
			}
			return nil, fmt.Errorf("更新用户 '%s' 失败: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, port.ErrUserNotFound
		}
	}
	return s.FindByID(ctx, id)
}

func (s *UserStoreImpl) UpdateRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return fmt.Errorf("更新用户 '%s' 角色失败: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrUserNotFound
	}
	return nil
}

func (s *UserStoreImpl) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除用户 '%s' 失败: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrUserNotFound
	}
	return nil
}

func (s *UserStoreImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计用户数失败: %w", err)
	}
	return n, nil
}

// CountByRole 按角色分组计数
func (s *UserStoreImpl) CountByRole(ctx context.Context) ([]domain.RoleCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role ORDER BY role`)
	if err != nil {
		return nil, fmt.Errorf("按角色统计用户失败: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RoleCount, 0, 2)
	for rows.Next() {
		var rc domain.RoleCount
		if err := rows.Scan(&rc.Role, &rc.Value); err != nil {
			return nil, fmt.Errorf("扫描角色统计失败: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
