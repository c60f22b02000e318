// Package observe file: internal/observe/debug.go
package observe

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// pprofMux 只挂载 pprof 端点，避免暴露 DefaultServeMux 上的其他处理器
func pprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// EnablePprof 在独立地址上暴露 /debug/pprof，例如 "localhost:6060"。
// 地址为空时不启动。
func EnablePprof(addr string) {
	if addr == "" {
		slog.Info("pprof 未启用")
		return
	}
	srv := &http.Server{Addr: addr, Handler: pprofMux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("pprof 端点已启动", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("pprof 端点启动失败", "error", err)
		}
	}()
}
