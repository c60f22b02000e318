// Package port file: internal/core/port/tap.go
package port

import (
	"context"
	"errors"
	"time"
)

// TAP 代理层的标准错误
var (
	ErrMissingParameter = errors.New("缺少必需的查询参数")
	ErrUpstreamTimeout  = errors.New("上游 TAP 服务请求超时")
	ErrUpstreamHTTP     = errors.New("上游 TAP 服务返回非成功状态码")
	ErrUpstreamNetwork  = errors.New("连接上游 TAP 服务失败")
	ErrDatasetNotFound  = errors.New("指定的数据集未注册")
)

// ExecOptions 单次 TAP 调用的选项
type ExecOptions struct {
	Upstream          string
	Timeout           time.Duration
	MaxRetries        int
	RetryableStatuses map[int]bool
	UserAgent         string
	// Label 仅用于日志与指标
	Label string
}

// RawResult 是上游返回的原始 HTTP 结果（仅 2xx 才会作为成功值返回）
type RawResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// TapExecutor 发起 TAP 同步查询
type TapExecutor interface {
	Execute(ctx context.Context, query string, opts ExecOptions) (*RawResult, error)
}
