// file: internal/adapter/tap/client.go
package tap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ExoGate/internal/core/port"
	"ExoGate/internal/observe"
)

// 编译期断言
var _ port.TapExecutor = (*Client)(nil)

// Upstream 一个 TAP 同步查询端点
type Upstream struct {
	BaseURL string
	// ExtraParams 会附加在 query/format 之外，例如标准 TAP 的 REQUEST/LANG
	ExtraParams map[string]string
}

// Client 对固定的 TAP 端点发起 GET 查询。
// 不做任何本地缓存，相同的查询每次都会重新访问上游。
type Client struct {
	httpClient  *http.Client
	upstreams   map[string]Upstream
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewClient 创建 TAP 客户端。httpClient 为 nil 时使用不带全局超时的默认客户端，
// 超时由每次尝试单独控制。
func NewClient(upstreams map[string]Upstream, backoffBase time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if backoffBase < 0 {
		backoffBase = 0
	}
	return &Client{
		httpClient:  httpClient,
		upstreams:   upstreams,
		backoffBase: backoffBase,
		sleep:       sleepContext,
	}
}

// BuildURL 对查询做百分号编码后拼接到上游基础地址
func (c *Client) BuildURL(upstream, query string) (string, error) {
	up, ok := c.upstreams[upstream]
	if !ok {
		return "", fmt.Errorf("未配置的 TAP 上游 '%s'", upstream)
	}
	base, err := url.Parse(up.BaseURL)
	if err != nil {
		return "", fmt.Errorf("解析 TAP 上游地址 '%s' 失败: %w", up.BaseURL, err)
	}
	params := base.Query()
	for k, v := range up.ExtraParams {
		params.Set(k, v)
	}
	params.Set("query", query)
	params.Set("format", "json")
	base.RawQuery = params.Encode()
	return base.String(), nil
}

// Execute 发起查询。仅当响应状态码在 RetryableStatuses 中时按指数退避重试，
// 总尝试次数为 MaxRetries+1；超时与连接错误不重试。
func (c *Client) Execute(ctx context.Context, query string, opts port.ExecOptions) (*port.RawResult, error) {
	target, err := c.BuildURL(opts.Upstream, query)
	if err != nil {
		return nil, err
	}
	maxAttempts := opts.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		slog.Debug("TAP 请求", "dataset", opts.Label, "attempt", attempt, "url", target)
		status, body, err := c.once(ctx, target, opts)
		if err != nil {
			if isTimeout(err) {
				observe.TapAttempts.WithLabelValues(opts.Label, "timeout").Inc()
				return nil, &TimeoutError{After: opts.Timeout, Attempts: attempt, Err: err}
			}
			observe.TapAttempts.WithLabelValues(opts.Label, "network_error").Inc()
			return nil, &NetworkError{Attempts: attempt, Err: err}
		}
		observe.TapAttempts.WithLabelValues(opts.Label, strconv.Itoa(status)).Inc()

		if status >= 200 && status < 300 {
			return &port.RawResult{StatusCode: status, Body: body, Attempts: attempt}, nil
		}

		httpErr := &HTTPError{Status: status, Body: body, Attempts: attempt}
		if attempt >= maxAttempts || !opts.RetryableStatuses[status] {
			return nil, httpErr
		}

		wait := c.backoff(attempt)
		slog.Warn("TAP 上游返回可重试状态码，准备重试", "dataset", opts.Label, "status", status, "attempt", attempt, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, &NetworkError{Attempts: attempt, Err: err}
		}
	}
}

// once 执行单次尝试，超时覆盖到读取完整响应体为止
func (c *Client) once(ctx context.Context, target string, opts port.ExecOptions) (int, []byte, error) {
	attemptCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.backoffBase * time.Duration(1<<(attempt-1))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
