// Package domain file: internal/core/domain/config_models.go
package domain

// 站点设置文档中可覆盖限流默认值的键
const (
	SettingIPRatePerMinute = "ip_rate_limit_per_minute"
	SettingIPBurst         = "ip_burst_size"
)

// IPLimitSetting 定义了单 IP 速率限制的配置
type IPLimitSetting struct {
	RateLimitPerMinute float64 `json:"rate_limit_per_minute"`
	BurstSize          int     `json:"burst_size"`
}

// DatasetLimitSetting 定义了单个数据集（即单个上游表）的速率限制
type DatasetLimitSetting struct {
	RateLimitPerSecond float64 `json:"rate_limit_per_second"`
	BurstSize          int     `json:"burst_size"`
}
