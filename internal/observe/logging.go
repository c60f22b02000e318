// Package observe file: internal/observe/logging.go
package observe

import (
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ParseLevel 将配置字符串转换为 slog 级别，无法识别时为 INFO
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	logLevel.Set(ParseLevel(levelStr))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLevel 运行期调整日志级别（配置热更新时调用）
func SetLevel(levelStr string) {
	lvl := ParseLevel(levelStr)
	if logLevel.Level() != lvl {
		slog.Info("日志级别已更新", "from", logLevel.Level().String(), "to", lvl.String())
	}
	logLevel.Set(lvl)
}

// Level 当前日志级别
func Level() slog.Level { return logLevel.Level() }
