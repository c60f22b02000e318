// Package service internal/service/rate_limit_config.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"ExoGate/internal/core/domain"
)

// GetIPLimitSettings 从站点设置文档读取单 IP 限流覆盖值。
// 两个键都不存在时返回 (nil, nil)，调用方应继续使用配置文件中的默认值。
func (s *AdminService) GetIPLimitSettings(ctx context.Context) (*domain.IPLimitSetting, error) {
	doc, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询IP限制配置失败: %w", err)
	}

	var (
		settings domain.IPLimitSetting
		hasRate  bool
		hasBurst bool
	)
	if v, ok := doc[domain.SettingIPRatePerMinute].(float64); ok && v > 0 {
		settings.RateLimitPerMinute = v
		hasRate = true
	} else if raw, exists := doc[domain.SettingIPRatePerMinute]; exists {
		slog.Warn("ip_rate_limit_per_minute 配置值非法", "value", raw)
	}
	if v, ok := doc[domain.SettingIPBurst].(float64); ok && v >= 1 {
		settings.BurstSize = int(v)
		hasBurst = true
	} else if raw, exists := doc[domain.SettingIPBurst]; exists {
		slog.Warn("ip_burst_size 配置值非法", "value", raw)
	}

	if !hasRate && !hasBurst {
		return nil, nil
	}
	return &settings, nil
}
