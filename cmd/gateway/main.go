// file: cmd/gateway/main.go

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ExoGate/internal/adapter/tap"
	"ExoGate/internal/config"
	"ExoGate/internal/observe"
	"ExoGate/internal/service"
	"ExoGate/internal/service/tapquery"
	"ExoGate/internal/transport/http/middleware"
	"ExoGate/internal/transport/http/router"

	_ "modernc.org/sqlite"
)

const version = "v1.0.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 在日志系统完全初始化前，使用标准 log
	log.Printf("ExoGate %s 正在启动...", version)

	cfg, v, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置失败: %v", err)
	}

	observe.InitLogger(cfg.Server.LogLevel)
	slog.Info("ExoGate starting up", "version", version, "config", *configPath)
	if cfg.UsesDevSecret() {
		slog.Warn("正在使用开发用 JWT 密钥，请勿用于生产环境")
	}
	config.Watch(v, func(next *config.Config) {
		observe.SetLevel(next.Server.LogLevel)
	})

	db, err := openDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("CRITICAL: 初始化数据库失败: %v", err)
	}
	defer func() {
		slog.Info("正在关闭数据库连接...")
		if err := db.Close(); err != nil {
			slog.Error("关闭数据库时发生错误", "error", err)
		}
	}()

	// 确保表结构存在
	if err := service.InitPlatformTables(db); err != nil {
		log.Fatalf("CRITICAL: 初始化平台系统表失败: %v", err)
	}

	// --- 存储层 ---
	users, err := service.NewUserStore(db)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	contacts, err := service.NewContactStore(db)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	audit, err := service.NewAuditStore(db)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	settings, err := service.NewSettingsStore(db)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}

	// --- 服务层 ---
	authService, err := service.NewAuthService(users, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		slog.Error("初始化 AuthService 失败", "error", err)
		os.Exit(1)
	}

	catalog := tapquery.DefaultCatalog()
	adminService, err := service.NewAdminService(service.AdminServiceDeps{
		Users:    users,
		Contacts: contacts,
		Audit:    audit,
		Settings: settings,
	}, catalog.Len(), 1000, 5*time.Minute)
	if err != nil {
		slog.Error("初始化 AdminService 失败", "error", err)
		os.Exit(1)
	}
	slog.Info("服务层: AuthService/AdminService 初始化完成")

	tapClient := tap.NewClient(map[string]tap.Upstream{
		tapquery.UpstreamNASA: {BaseURL: cfg.TAP.NASABaseURL},
		tapquery.UpstreamEU: {
			BaseURL:     cfg.TAP.EUBaseURL,
			ExtraParams: map[string]string{"REQUEST": "doQuery", "LANG": "ADQL"},
		},
	}, cfg.TAP.BackoffBase, nil)
	pipeline := tapquery.NewPipeline(catalog, tapClient, tapquery.PipelineOptions{
		DefaultTimeout: cfg.TAP.DefaultTimeout,
		UserAgent:      cfg.TAP.UserAgent,
	})
	slog.Info("服务层: TAP 查询管道初始化完成", "datasets", catalog.Len())

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		GlobalRPS:    cfg.RateLimit.GlobalRPS,
		GlobalBurst:  cfg.RateLimit.GlobalBurst,
		IPPerMinute:  cfg.RateLimit.IPPerMinute,
		IPBurst:      cfg.RateLimit.IPBurst,
		DatasetRPS:   cfg.RateLimit.DatasetRPS,
		DatasetBurst: cfg.RateLimit.DatasetBurst,
		KnownDataset: func(name string) bool {
			_, ok := catalog.Get(name)
			return ok
		},
	}, adminService)
	defer rateLimiter.Close()
	rateLimiter.LoadIPDefaults(context.Background())

	loginLock := middleware.NewLoginFailureLock(cfg.Auth.LoginMaxFailures, cfg.Auth.LoginLockout)

	setupToken, err := authService.EnsureSetupToken(context.Background())
	if err != nil {
		slog.Error("检查初始化状态失败", "error", err)
		os.Exit(1)
	}
	if setupToken != "" {
		slog.Warn("系统中无任何用户，安装令牌已生成", "setup_token", setupToken)
	}

	httpRouter := router.New(router.Dependencies{
		Pipeline:               pipeline,
		Auth:                   authService,
		Users:                  users,
		Contacts:               contacts,
		Admin:                  adminService,
		RateLimiter:            rateLimiter,
		LoginLock:              loginLock,
		CORSOrigins:            cfg.Server.CORSOrigins,
		CookieSecure:           cfg.Auth.CookieSecure,
		AllowGooglePassthrough: cfg.Auth.AllowGooglePassthrough,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("ExoGate 启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.Server.PprofAddr != "" {
		observe.EnablePprof(cfg.Server.PprofAddr)
	}
	observe.Register()
	slog.Info("监控: metrics 已注册。")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}
	slog.Info("HTTP服务已成功关闭。")
}

// openDB 打开 sqlite 数据库，目录不存在时创建
func openDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录 '%s' 失败: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开/创建数据库 '%s' 失败: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库 '%s' (Ping) 失败: %w", path, err)
	}
	return db, nil
}
