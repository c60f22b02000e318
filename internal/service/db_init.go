// file: internal/service/db_init.go
package service

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// InitPlatformTables 负责在系统启动时，检查并创建所有平台级的表。
func InitPlatformTables(db *sql.DB) error {
	if err := initUserTable(db); err != nil {
		return fmt.Errorf("初始化用户表失败: %w", err)
	}
	if err := initContactTable(db); err != nil {
		return fmt.Errorf("初始化联系消息表失败: %w", err)
	}
	if err := initAuditLogTable(db); err != nil {
		return fmt.Errorf("初始化审计日志表失败: %w", err)
	}
	if err := initSettingsTable(db); err != nil {
		return fmt.Errorf("初始化站点设置表失败: %w", err)
	}

	slog.Info("数据库: 所有系统表结构初始化/检查完成。")
	return nil
}

// initUserTable 创建用户表。password_hash 为空表示第三方登录创建的账户，不能用密码登录。
func initUserTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS users(
        id TEXT PRIMARY KEY,
        username TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL DEFAULT '',
        avatar TEXT NOT NULL DEFAULT '',
        role TEXT NOT NULL DEFAULT 'user',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'users' 表失败: %w", err)
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_role ON users (role);`)
	return err
}

func initContactTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS contacts(
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        message TEXT NOT NULL,
        timestamp TEXT NOT NULL        -- 定宽 UTC 文本，可按字典序比较
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'contacts' 表失败: %w", err)
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_contacts_ts ON contacts (timestamp);`)
	return err
}

// initAuditLogTable 管理员操作审计
func initAuditLogTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS audit_logs (
        id TEXT PRIMARY KEY,
        action TEXT NOT NULL,          -- 'update-role', 'delete-user', 'update-settings'
        target_id TEXT NOT NULL,
        description TEXT NOT NULL,
        performed_by TEXT NOT NULL,
        timestamp TEXT NOT NULL        -- 定宽 UTC 文本，可按字典序比较
    );`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'audit_logs' 表失败: %w", err)
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_logs (timestamp);`)
	return err
}

// initSettingsTable 站点设置以单个 JSON 文档保存
func initSettingsTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("创建 'settings' 表失败: %w", err)
	}
	return nil
}
