// file: internal/service/settings_store.go
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ExoGate/internal/core/port"
)

const siteSettingsKey = "site"

// SettingsStoreImpl 站点设置是一个 JSON 对象，PUT 时按顶层键浅合并
type SettingsStoreImpl struct {
	db *sql.DB
}

var _ port.SettingsStore = (*SettingsStoreImpl)(nil)

func NewSettingsStore(db *sql.DB) (*SettingsStoreImpl, error) {
	if db == nil {
		return nil, fmt.Errorf("SettingsStore 初始化失败: db 实例不能为 nil")
	}
	return &SettingsStoreImpl{db: db}, nil
}

// Get 尚未保存过设置时返回空对象
func (s *SettingsStoreImpl) Get(ctx context.Context) (map[string]interface{}, error) {
	return s.load(ctx, s.db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SettingsStoreImpl) load(ctx context.Context, q queryRower) (map[string]interface{}, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, siteSettingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取站点设置失败: %w", err)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("站点设置数据格式无效: %w", err)
	}
	return doc, nil
}

// Merge 在一个事务内读取-合并-写回，返回合并后的文档
func (s *SettingsStoreImpl) Merge(ctx context.Context, patch map[string]interface{}) (result map[string]interface{}, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开启事务失败 (Settings Merge): %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	doc, err := s.load(ctx, tx)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		doc[k] = v
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("序列化站点设置失败: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings(key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		siteSettingsKey, string(encoded))
	if err != nil {
		return nil, fmt.Errorf("写入站点设置失败: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交站点设置事务失败: %w", err)
	}
	return doc, nil
}
