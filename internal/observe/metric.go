// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exogate_http_request_duration_seconds",
		Help:    "HTTP 请求处理耗时",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "code"})

	// TapAttempts 每一次上游尝试，outcome 为状态码或 timeout/network_error
	TapAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exogate_tap_attempts_total",
		Help: "上游 TAP 请求尝试次数",
	}, []string{"dataset", "outcome"})

	// TapResults 每次代理调用的最终结果类型
	TapResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exogate_tap_results_total",
		Help: "TAP 代理调用最终结果",
	}, []string{"dataset", "kind"})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(httpRequestDuration, TapAttempts, TapResults)
}

// Handler 返回 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }

// PrometheusMiddleware 记录每个请求的耗时，path 使用路由模板避免标签爆炸
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestDuration.
			WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
