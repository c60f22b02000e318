// file: internal/observe/logging_test.go

package observe

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		" DEBUG ":  slog.LevelDebug,
		"warn":     slog.LevelWarn,
		"WARNING":  slog.LevelWarn,
		"error":    slog.LevelError,
		"info":     slog.LevelInfo,
		"":         slog.LevelInfo,
		"verbose?": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "输入 %q", in)
	}
}

func TestSetLevel_AppliesToDefaultLogger(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	InitLogger("INFO")
	assert.Equal(t, slog.LevelInfo, Level())
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, Level())
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug), "级别变更应立即作用于已安装的 handler")

	SetLevel("ERROR")
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestPprofMux_ServesIndex(t *testing.T) {
	w := httptest.NewRecorder()
	pprofMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	pprofMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
