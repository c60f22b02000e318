// Package config 负责集中式配置加载：配置文件 + EXOGATE_* 环境变量
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，键中的 '.' 替换为 '_'，例如 EXOGATE_SERVER_PORT
const EnvPrefix = "EXOGATE"

// devJWTSecret 仅供本地开发，生产环境必须通过配置覆盖
const devJWTSecret = "ExoGateDevSecret_change_me"

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	PprofAddr   string   `mapstructure:"pprof_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret              string        `mapstructure:"jwt_secret"`
	TokenTTL               time.Duration `mapstructure:"token_ttl"`
	CookieSecure           bool          `mapstructure:"cookie_secure"`
	AllowGooglePassthrough bool          `mapstructure:"allow_google_passthrough"`
	LoginMaxFailures       int           `mapstructure:"login_max_failures"`
	LoginLockout           time.Duration `mapstructure:"login_lockout"`
}

type TAPConfig struct {
	NASABaseURL    string        `mapstructure:"nasa_base_url"`
	EUBaseURL      string        `mapstructure:"eu_base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
}

type RateLimitConfig struct {
	GlobalRPS    float64 `mapstructure:"global_rps"`
	GlobalBurst  int     `mapstructure:"global_burst"`
	IPPerMinute  float64 `mapstructure:"ip_per_minute"`
	IPBurst      int     `mapstructure:"ip_burst"`
	DatasetRPS   float64 `mapstructure:"dataset_rps"`
	DatasetBurst int     `mapstructure:"dataset_burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	TAP       TAPConfig       `mapstructure:"tap"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10224)
	v.SetDefault("server.log_level", "INFO")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.path", "instance/exogate.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.allow_google_passthrough", false)
	v.SetDefault("auth.login_max_failures", 5)
	v.SetDefault("auth.login_lockout", 15*time.Minute)

	v.SetDefault("tap.nasa_base_url", "https://exoplanetarchive.ipac.caltech.edu/TAP/sync")
	v.SetDefault("tap.eu_base_url", "http://voparis-tap-planeto.obspm.fr/tap/sync")
	v.SetDefault("tap.user_agent", "exogate-tap-client")
	v.SetDefault("tap.default_timeout", 30*time.Second)
	v.SetDefault("tap.backoff_base", time.Second)

	v.SetDefault("ratelimit.global_rps", 20.0)
	v.SetDefault("ratelimit.global_burst", 40)
	v.SetDefault("ratelimit.ip_per_minute", 120.0)
	v.SetDefault("ratelimit.ip_burst", 30)
	v.SetDefault("ratelimit.dataset_rps", 5.0)
	v.SetDefault("ratelimit.dataset_burst", 10)
}

// Load 读取配置。path 为空或文件不存在时只使用默认值与环境变量。
// 返回的 viper 实例用于 Watch。
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("访问配置文件 '%s' 失败: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port 非法: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path 不能为空")
	}
	if c.TAP.NASABaseURL == "" || c.TAP.EUBaseURL == "" {
		return fmt.Errorf("tap.nasa_base_url 与 tap.eu_base_url 不能为空")
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = devJWTSecret
		slog.Warn("未配置 auth.jwt_secret，将使用开发用默认密钥。生产环境请设置 EXOGATE_AUTH_JWT_SECRET！")
	}
	return nil
}

// UsesDevSecret 是否仍在使用开发用默认密钥
func (c *Config) UsesDevSecret() bool { return c.Auth.JWTSecret == devJWTSecret }

// Watch 监听配置文件变更，重新解析成功后回调。未加载配置文件时不做任何事。
// 只有可以在运行期安全调整的字段（如日志级别）应在回调中生效。
func Watch(v *viper.Viper, onChange func(*Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			slog.Error("配置热更新失败，保留旧配置", "file", e.Name, "error", err)
			return
		}
		slog.Info("检测到配置文件变更", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
}
