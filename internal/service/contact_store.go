// file: internal/service/contact_store.go
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

// ContactStoreImpl 联系表单消息
type ContactStoreImpl struct {
	db  *sql.DB
	now func() time.Time
}

var _ port.ContactStore = (*ContactStoreImpl)(nil)

func NewContactStore(db *sql.DB) (*ContactStoreImpl, error) {
	if db == nil {
		return nil, fmt.Errorf("ContactStore 初始化失败: db 实例不能为 nil")
	}
	return &ContactStoreImpl{db: db, now: time.Now}, nil
}

// Add 保存消息。未指定时间戳时使用当前 UTC 时间。
func (s *ContactStoreImpl) Add(ctx context.Context, msg domain.ContactMessage) (*domain.ContactMessage, error) {
	msg.ID = uuid.NewString()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	msg.Timestamp = msg.Timestamp.UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts(id, name, email, message, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Email, msg.Message, formatTS(msg.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("保存联系消息失败: %w", err)
	}
	return &msg, nil
}

// List 按时间顺序返回全部消息
func (s *ContactStoreImpl) List(ctx context.Context) ([]domain.ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, message, timestamp FROM contacts ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("查询联系消息失败: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ContactMessage, 0)
	for rows.Next() {
		var (
			m  domain.ContactMessage
			ts string
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &ts); err != nil {
			return nil, fmt.Errorf("扫描联系消息失败: %w", err)
		}
		m.Timestamp = parseTS(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *ContactStoreImpl) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计联系消息失败: %w", err)
	}
	return n, nil
}

// CountBetween 统计 [from, to) 区间内的消息数
func (s *ContactStoreImpl) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE timestamp >= ? AND timestamp < ?`,
		formatTS(from), formatTS(to)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("按时间段统计联系消息失败: %w", err)
	}
	return n, nil
}
