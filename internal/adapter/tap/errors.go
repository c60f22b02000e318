// file: internal/adapter/tap/errors.go
package tap

import (
	"fmt"
	"time"

	"ExoGate/internal/core/port"
)

// HTTPError 上游在重试耗尽后仍返回非 2xx
type HTTPError struct {
	Status   int
	Body     []byte
	Attempts int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d Error from TAP service: %s", e.Status, truncate(e.Body, 256))
}

func (e *HTTPError) Unwrap() error { return port.ErrUpstreamHTTP }

// TimeoutError 单次尝试超过了设定的超时时间
type TimeoutError struct {
	After    time.Duration
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TAP 请求在 %s 后超时: %v", e.After, e.Err)
}

func (e *TimeoutError) Is(target error) bool { return target == port.ErrUpstreamTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// NetworkError 连接层失败（DNS、拒绝连接、连接重置等）
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("TAP 连接失败: %v", e.Err)
}

func (e *NetworkError) Is(target error) bool { return target == port.ErrUpstreamNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
