// Package tapquery file: internal/service/tapquery/pipeline.go
package tapquery

import (
	"context"
	"log/slog"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"
	"ExoGate/internal/observe"
)

// PipelineOptions 所有数据集共享的默认值
type PipelineOptions struct {
	DefaultTimeout time.Duration
	UserAgent      string
}

// Pipeline 串联 Builder → TapExecutor → Normalizer，每次调用互不共享状态
type Pipeline struct {
	catalog    *Catalog
	exec       port.TapExecutor
	normalizer *Normalizer
	opts       PipelineOptions
}

// NewPipeline 创建管线
func NewPipeline(catalog *Catalog, exec port.TapExecutor, opts PipelineOptions) *Pipeline {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	return &Pipeline{
		catalog:    catalog,
		exec:       exec,
		normalizer: NewNormalizer(exec),
		opts:       opts,
	}
}

// Catalog 返回只读的数据集表
func (p *Pipeline) Catalog() *Catalog { return p.catalog }

// execOptions 由数据集策略推导单次调用选项
func (p *Pipeline) execOptions(spec *domain.DatasetSpec) port.ExecOptions {
	timeout := p.opts.DefaultTimeout
	if spec.Policy.TimeoutMs > 0 {
		timeout = time.Duration(spec.Policy.TimeoutMs) * time.Millisecond
	}
	retryable := make(map[int]bool, len(spec.Policy.RetryableStatuses))
	for _, s := range spec.Policy.RetryableStatuses {
		retryable[s] = true
	}
	upstream := spec.Policy.Upstream
	if upstream == "" {
		upstream = UpstreamNASA
	}
	return port.ExecOptions{
		Upstream:          upstream,
		Timeout:           timeout,
		MaxRetries:        spec.Policy.MaxRetries,
		RetryableStatuses: retryable,
		UserAgent:         p.opts.UserAgent,
		Label:             spec.Name,
	}
}

// Run 执行一个数据集查询。
// 调用方断开连接不会中止进行中的上游请求，请求只会在完成或超时后结束。
func (p *Pipeline) Run(ctx context.Context, req domain.QueryRequest) domain.TapResult {
	ctx = context.WithoutCancel(ctx)
	spec := req.Dataset
	result := p.run(ctx, spec, req.Bindings)
	observe.TapResults.WithLabelValues(spec.Name, result.Kind.String()).Inc()
	if result.Kind != domain.ResultSuccess && result.Kind != domain.ResultEmptyWithFallback {
		slog.Warn("TAP 代理调用失败", "dataset", spec.Name, "kind", result.Kind.String(), "status", result.UpstreamStatus, "error", result.Detail)
	}
	return result
}

func (p *Pipeline) run(ctx context.Context, spec *domain.DatasetSpec, bindings map[string]string) domain.TapResult {
	query, err := Build(spec, bindings)
	if err != nil {
		return FromError(err)
	}
	fb, err := prepareFallback(spec, bindings)
	if err != nil {
		return FromError(err)
	}

	opts := p.execOptions(spec)
	raw, err := p.exec.Execute(ctx, query, opts)
	if err != nil {
		return FromError(err)
	}
	return p.normalizer.Normalize(ctx, raw, fb, opts, spec.Policy.RowFormat)
}

// customQuerySpec 自定义查询沿用 NASA 上游的默认策略，不做兜底
var customQuerySpec = &domain.DatasetSpec{
	Name:         "tap-query",
	ServiceLabel: "TAP query",
	Policy:       domain.UpstreamPolicy{Upstream: UpstreamNASA},
}

// RunCustom 原样转发调用方提供的 ADQL
func (p *Pipeline) RunCustom(ctx context.Context, query string) domain.TapResult {
	ctx = context.WithoutCancel(ctx)
	opts := p.execOptions(customQuerySpec)
	var result domain.TapResult
	raw, err := p.exec.Execute(ctx, normalizeWhitespace(query), opts)
	if err != nil {
		result = FromError(err)
	} else {
		result = p.normalizer.Normalize(ctx, raw, nil, opts, customQuerySpec.Policy.RowFormat)
	}
	observe.TapResults.WithLabelValues(customQuerySpec.Name, result.Kind.String()).Inc()
	return result
}

// CustomQueryLabel 自定义查询在错误消息中使用的服务名
func CustomQueryLabel() string { return customQuerySpec.ServiceLabel }
