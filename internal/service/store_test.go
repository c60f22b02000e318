// file: internal/service/store_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// newTestDB 在临时目录中创建一个已初始化表结构的 sqlite 数据库
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, InitPlatformTables(db))
	return db
}

func strPtr(s string) *string { return &s }

// ===============================
// 用户存储
// ===============================

func TestUserStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store, err := NewUserStore(newTestDB(t))
	require.NoError(t, err)

	u, err := store.Create(ctx, "alice", "alice@example.com", "pw1", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.Equal(t, domain.DefaultAvatar, u.Avatar)

	_, err = store.Create(ctx, "alice2", "alice@example.com", "pw2", "", "")
	assert.True(t, errors.Is(err, port.ErrUserExists))

	found, hash, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.NotEqual(t, "pw1", hash, "密码必须以哈希形式保存")

	_, _, err = store.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, port.ErrUserNotFound))

	updated, err := store.Update(ctx, u.ID, domain.UserUpdate{Username: strPtr("alice-renamed"), Password: strPtr("pw-new")})
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", updated.Username)
	assert.Equal(t, "alice@example.com", updated.Email)
	_, newHash, _ := store.FindByEmail(ctx, "alice@example.com")
	assert.NotEqual(t, hash, newHash)

	_, err = store.Update(ctx, u.ID, domain.UserUpdate{Password: strPtr("")})
	assert.True(t, errors.Is(err, port.ErrEmptyPassword))
	_, unchanged, _ := store.FindByEmail(ctx, "alice@example.com")
	assert.Equal(t, newHash, unchanged, "空密码不能覆盖已有哈希")

	_, err = store.Update(ctx, "missing", domain.UserUpdate{Username: strPtr("x")})
	assert.True(t, errors.Is(err, port.ErrUserNotFound))

	require.NoError(t, store.UpdateRole(ctx, u.ID, domain.RoleAdmin))
	got, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)

	_, err = store.Create(ctx, "bob", "bob@example.com", "pw", "https://a/b.png", domain.RoleUser)
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	roles, err := store.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RoleCount{{Role: "admin", Value: 1}, {Role: "user", Value: 1}}, roles)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, store.Delete(ctx, u.ID))
	assert.True(t, errors.Is(store.Delete(ctx, u.ID), port.ErrUserNotFound))
	_, err = store.FindByID(ctx, u.ID)
	assert.True(t, errors.Is(err, port.ErrUserNotFound))
}

func TestUserStore_CountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, _ := NewUserStore(db)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").WillReturnError(errors.New("disk I/O error"))

	_, err = store.Count(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ===============================
// 联系消息与审计
// ===============================

func TestContactStore_CountBetween(t *testing.T) {
	ctx := context.Background()
	store, err := NewContactStore(newTestDB(t))
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{
		day.Add(-time.Nanosecond),
		day,
		day.Add(12 * time.Hour),
		day.Add(24*time.Hour - time.Nanosecond),
		day.Add(24 * time.Hour),
	} {
		_, err := store.Add(ctx, domain.ContactMessage{Name: "n", Email: "e@x", Message: "m", Timestamp: ts})
		require.NoError(t, err)
	}

	n, err := store.CountBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	msgs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.True(t, msgs[0].Timestamp.Equal(day.Add(-time.Nanosecond)))
}

func TestContactStore_DefaultTimestamp(t *testing.T) {
	store, _ := NewContactStore(newTestDB(t))
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	msg, err := store.Add(context.Background(), domain.ContactMessage{Name: "n", Email: "e@x", Message: "m"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.True(t, msg.Timestamp.Equal(fixed))
}

func TestAuditStore_LatestFirst(t *testing.T) {
	ctx := context.Background()
	store, _ := NewAuditStore(newTestDB(t))
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	require.NoError(t, store.Record(ctx, "update-role", "u1", "Set role to admin", "admin1"))
	require.NoError(t, store.Record(ctx, "delete-user", "u2", "Deleted user", ""))

	entries, err := store.Latest(ctx, 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "delete-user", entries[0].Action)
	assert.Equal(t, "unknown", entries[0].PerformedBy)
	assert.Equal(t, "update-role", entries[1].Action)

	one, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

// ===============================
// 站点设置
// ===============================

func TestSettingsStore_ShallowMerge(t *testing.T) {
	ctx := context.Background()
	store, _ := NewSettingsStore(newTestDB(t))

	doc, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	_, err = store.Merge(ctx, map[string]interface{}{"siteName": "ExoGate", "theme": map[string]interface{}{"dark": true}})
	require.NoError(t, err)
	doc, err = store.Merge(ctx, map[string]interface{}{"theme": "light", "maintenance": false})
	require.NoError(t, err)

	assert.Equal(t, "ExoGate", doc["siteName"])
	assert.Equal(t, "light", doc["theme"])
	assert.Equal(t, false, doc["maintenance"])

	again, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestSettingsStore_MergeRollsBackOnWriteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store, _ := NewSettingsStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT value FROM settings").WithArgs(siteSettingsKey).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"a":1}`))
	mock.ExpectExec("INSERT INTO settings").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	_, err = store.Merge(context.Background(), map[string]interface{}{"b": 2})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
