// file: internal/service/audit_store.go
package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"

	"github.com/google/uuid"
)

// AuditStoreImpl 管理员操作审计日志，只追加
type AuditStoreImpl struct {
	db  *sql.DB
	now func() time.Time
}

var _ port.AuditStore = (*AuditStoreImpl)(nil)

func NewAuditStore(db *sql.DB) (*AuditStoreImpl, error) {
	if db == nil {
		return nil, fmt.Errorf("AuditStore 初始化失败: db 实例不能为 nil")
	}
	return &AuditStoreImpl{db: db, now: time.Now}, nil
}

func (s *AuditStoreImpl) Record(ctx context.Context, action, targetID, description, performedBy string) error {
	if performedBy == "" {
		performedBy = "unknown"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs(id, action, target_id, description, performed_by, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), action, targetID, description, performedBy, formatTS(s.now()))
	if err != nil {
		return fmt.Errorf("写入审计日志 '%s' 失败: %w", action, err)
	}
	return nil
}

// Latest 按时间倒序返回最近 limit 条
func (s *AuditStoreImpl) Latest(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, target_id, description, performed_by, timestamp
         FROM audit_logs ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e  domain.AuditEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetID, &e.Description, &e.PerformedBy, &ts); err != nil {
			return nil, fmt.Errorf("扫描审计日志失败: %w", err)
		}
		e.Timestamp = parseTS(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
