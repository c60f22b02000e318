// Package middleware file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ExoGate/internal/core/domain"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterEntry 存储限制器和最后访问时间
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimitProvider 提供运行期可调整的单 IP 限流值
type IPLimitProvider interface {
	GetIPLimitSettings(ctx context.Context) (*domain.IPLimitSetting, error)
}

// RateLimitConfig 三层限流的默认值
type RateLimitConfig struct {
	GlobalRPS     float64
	GlobalBurst   int
	IPPerMinute   float64
	IPBurst       int
	DatasetRPS    float64
	DatasetBurst  int
	IdleExpiry    time.Duration
	SweepInterval time.Duration
	// KnownDataset 判断 :dataset 是否为已注册的数据集。未注册的名称共用一个限流桶，
	// 避免任意路径参数撑大限流表。为 nil 时每个名称独立计数。
	KnownDataset func(name string) bool
}

// unknownDatasetKey 所有未注册数据集名称共用的限流键
const unknownDatasetKey = "\x00unknown"

// ============================================================================
//  业务限流器：Global -> IP -> Dataset
// ============================================================================

// RateLimiter 管理全局、单 IP 与单数据集三层限流。
// 单数据集一层保护的是上游 TAP 服务，而不是本服务。
type RateLimiter struct {
	provider IPLimitProvider
	cfg      RateLimitConfig

	globalLimiter *rate.Limiter

	ipLimiters     map[string]*limiterEntry
	ipMu           sync.Mutex
	ipDefaultRate  rate.Limit
	ipDefaultBurst int

	datasetLimiters map[string]*limiterEntry
	datasetMu       sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter 创建限流器并启动过期条目清理。provider 可以为 nil。
func NewRateLimiter(cfg RateLimitConfig, provider IPLimitProvider) *RateLimiter {
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = 15 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	rl := &RateLimiter{
		provider:        provider,
		cfg:             cfg,
		globalLimiter:   rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		ipLimiters:      make(map[string]*limiterEntry),
		ipDefaultRate:   rate.Limit(cfg.IPPerMinute / 60.0),
		ipDefaultBurst:  cfg.IPBurst,
		datasetLimiters: make(map[string]*limiterEntry),
		stop:            make(chan struct{}),
	}
	go rl.cleanupLoop()

	slog.Info("[RateLimiter] 初始化完成",
		"global_rps", cfg.GlobalRPS, "global_burst", cfg.GlobalBurst,
		"ip_per_minute", cfg.IPPerMinute, "ip_burst", cfg.IPBurst,
		"dataset_rps", cfg.DatasetRPS, "dataset_burst", cfg.DatasetBurst)
	return rl
}

// LoadIPDefaults 从站点设置加载单 IP 限流覆盖值，已存在的 IP 条目会被重建。
func (rl *RateLimiter) LoadIPDefaults(ctx context.Context) {
	if rl.provider == nil {
		return
	}
	settings, err := rl.provider.GetIPLimitSettings(ctx)
	if err != nil {
		slog.Warn("[RateLimiter] 加载IP限流设置失败，继续使用当前值", "error", err)
		return
	}

	rl.ipMu.Lock()
	defer rl.ipMu.Unlock()
	newRate := rate.Limit(rl.cfg.IPPerMinute / 60.0)
	newBurst := rl.cfg.IPBurst
	if settings != nil {
		if settings.RateLimitPerMinute > 0 {
			newRate = rate.Limit(settings.RateLimitPerMinute / 60.0)
		}
		if settings.BurstSize > 0 {
			newBurst = settings.BurstSize
		}
	}
	if newRate != rl.ipDefaultRate || newBurst != rl.ipDefaultBurst {
		rl.ipDefaultRate, rl.ipDefaultBurst = newRate, newBurst
		rl.ipLimiters = make(map[string]*limiterEntry)
		slog.Info("[RateLimiter] 单IP限流已更新", "per_minute", float64(newRate)*60, "burst", newBurst)
	}
}

// trackedDatasets 当前持有的单数据集限流条目数
func (rl *RateLimiter) trackedDatasets() int {
	rl.datasetMu.Lock()
	defer rl.datasetMu.Unlock()
	return len(rl.datasetLimiters)
}

// Close 停止后台清理
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanupLoop 定期清理不活跃的 IP 与数据集条目
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.ipMu.Lock()
	for ip, entry := range rl.ipLimiters {
		if now.Sub(entry.lastSeen) > rl.cfg.IdleExpiry {
			delete(rl.ipLimiters, ip)
		}
	}
	rl.ipMu.Unlock()

	rl.datasetMu.Lock()
	for name, entry := range rl.datasetLimiters {
		if now.Sub(entry.lastSeen) > rl.cfg.IdleExpiry {
			delete(rl.datasetLimiters, name)
		}
	}
	rl.datasetMu.Unlock()
}

// ==================================================================
//  模块化的中间件方法
// ==================================================================

// Global 返回全局限制中间件
func (rl *RateLimiter) Global() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.globalLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Server is busy, please retry later (global limit)"})
			return
		}
		c.Next()
	}
}

// PerIP 返回IP限制中间件
func (rl *RateLimiter) PerIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()
		rl.ipMu.Lock()
		entry, exists := rl.ipLimiters[ip]
		if !exists {
			entry = &limiterEntry{limiter: rate.NewLimiter(rl.ipDefaultRate, rl.ipDefaultBurst)}
			rl.ipLimiters[ip] = entry
		}
		entry.lastSeen = now
		rl.ipMu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please retry later (per-ip limit)"})
			return
		}
		c.Next()
	}
}

// PerDataset 按路由参数 :dataset 限流，没有该参数的路由直接放行
func (rl *RateLimiter) PerDataset() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("dataset")
		if name == "" {
			c.Next()
			return
		}
		key := name
		if rl.cfg.KnownDataset != nil && !rl.cfg.KnownDataset(name) {
			key = unknownDatasetKey
		}
		now := time.Now()
		rl.datasetMu.Lock()
		entry, exists := rl.datasetLimiters[key]
		if !exists {
			entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rl.cfg.DatasetRPS), rl.cfg.DatasetBurst)}
			rl.datasetLimiters[key] = entry
		}
		entry.lastSeen = now
		rl.datasetMu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests for dataset '" + name + "', please retry later"})
			return
		}
		c.Next()
	}
}

// DatasetChain 用于 TAP 代理接口。顺序: Global -> IP -> Dataset
func (rl *RateLimiter) DatasetChain() []gin.HandlerFunc {
	return []gin.HandlerFunc{rl.Global(), rl.PerIP(), rl.PerDataset()}
}

// LightweightChain 用于账户与管理接口。顺序: Global -> IP
func (rl *RateLimiter) LightweightChain() []gin.HandlerFunc {
	return []gin.HandlerFunc{rl.Global(), rl.PerIP()}
}
