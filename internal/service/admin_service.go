// file: internal/service/admin_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
)

// AdminService 管理后台：用户与角色、统计、站点设置、审计
type AdminService struct {
	users    port.UserStore
	contacts port.ContactStore
	audit    port.AuditStore
	settings port.SettingsStore

	datasetCount int
	roleCache    *lru.LRU[string, string]
	now          func() time.Time
}

// AdminServiceDeps 构造 AdminService 所需的存储
type AdminServiceDeps struct {
	Users    port.UserStore
	Contacts port.ContactStore
	Audit    port.AuditStore
	Settings port.SettingsStore
}

// NewAdminService 创建一个新的 AdminService 实例。
// datasetCount 是对外提供的数据集数量，计入统计面板。
func NewAdminService(deps AdminServiceDeps, datasetCount int, maxCacheEntries int, roleCacheTTL time.Duration) (*AdminService, error) {
	if deps.Users == nil || deps.Contacts == nil || deps.Audit == nil || deps.Settings == nil {
		return nil, fmt.Errorf("AdminService 初始化失败: 存储实例不能为 nil")
	}
	if maxCacheEntries <= 0 {
		maxCacheEntries = 1000
	}
	if roleCacheTTL <= 0 {
		roleCacheTTL = 30 * time.Second
	}
	return &AdminService{
		users:        deps.Users,
		contacts:     deps.Contacts,
		audit:        deps.Audit,
		settings:     deps.Settings,
		datasetCount: datasetCount,
		roleCache:    lru.NewLRU[string, string](maxCacheEntries, nil, roleCacheTTL),
		now:          time.Now,
	}, nil
}

// RoleOf 返回用户当前角色（带短期缓存）。角色变更与删除会使缓存失效。
func (s *AdminService) RoleOf(ctx context.Context, userID string) (string, error) {
	if role, ok := s.roleCache.Get(userID); ok {
		return role, nil
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	s.roleCache.Add(userID, u.Role)
	return u.Role, nil
}

func (s *AdminService) Users(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *AdminService) ContactMessages(ctx context.Context) ([]domain.ContactMessage, error) {
	return s.contacts.List(ctx)
}

// ChangeRole 只接受 user 与 admin
func (s *AdminService) ChangeRole(ctx context.Context, actorID, userID, role string) error {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return fmt.Errorf("角色 '%s': %w", role, port.ErrInvalidRole)
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.roleCache.Remove(userID)
	s.record(ctx, "update-role", userID, "Set role to "+role, actorID)
	return nil
}

func (s *AdminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.roleCache.Remove(userID)
	s.record(ctx, "delete-user", userID, "Deleted user", actorID)
	return nil
}

// ForgetUser 用户自助删除账户后调用，使角色缓存失效
func (s *AdminService) ForgetUser(userID string) { s.roleCache.Remove(userID) }

func (s *AdminService) Settings(ctx context.Context) (map[string]interface{}, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings 浅合并并记录审计
func (s *AdminService) UpdateSettings(ctx context.Context, actorID string, patch map[string]interface{}) (map[string]interface{}, error) {
	doc, err := s.settings.Merge(ctx, patch)
	if err != nil {
		return nil, err
	}
	desc, _ := json.Marshal(patch)
	s.record(ctx, "update-settings", "all", string(desc), actorID)
	return doc, nil
}

// AuditTrail 最近 100 条审计记录
func (s *AdminService) AuditTrail(ctx context.Context) ([]domain.AuditEntry, error) {
	return s.audit.Latest(ctx, 100)
}

// record 审计写入失败不影响已完成的操作
func (s *AdminService) record(ctx context.Context, action, targetID, description, actorID string) {
	if err := s.audit.Record(ctx, action, targetID, description, actorID); err != nil {
		slog.Error("写入审计日志失败", "action", action, "target_id", targetID, "error", err)
	}
}

// Stats 并发执行各项统计。contactActivity 覆盖含今天在内的最近 7 个 UTC 自然日，按日期升序。
func (s *AdminService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	const days = 7
	stats := &domain.AdminStats{
		TotalDatasets:   s.datasetCount,
		ContactActivity: make([]domain.DailyCount, days),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.Count(gctx)
		stats.TotalUsers = n
		return err
	})
	g.Go(func() error {
		n, err := s.contacts.Count(gctx)
		stats.TotalMessages = n
		return err
	})
	g.Go(func() error {
		roles, err := s.users.CountByRole(gctx)
		stats.UserRoles = roles
		return err
	})

	today := s.now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i-(days-1))
		stats.ContactActivity[i].Date = day.Format("2006-01-02")
		g.Go(func() error {
			n, err := s.contacts.CountBetween(gctx, day, day.AddDate(0, 0, 1))
			stats.ContactActivity[i].Count = n
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("汇总管理统计失败: %w", err)
	}
	if stats.UserRoles == nil {
		stats.UserRoles = []domain.RoleCount{}
	}
	return stats, nil
}
