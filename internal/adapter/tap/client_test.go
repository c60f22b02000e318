// file: internal/adapter/tap/client_test.go
package tap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"ExoGate/internal/core/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 创建一个指向测试服务器的客户端，并记录每次退避等待
func newTestClient(baseURL string) (*Client, *[]time.Duration) {
	c := NewClient(map[string]Upstream{"nasa": {BaseURL: baseURL}}, 10*time.Millisecond, nil)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return c, &waits
}

func retryOpts(maxRetries int) port.ExecOptions {
	return port.ExecOptions{
		Upstream:          "nasa",
		Timeout:           2 * time.Second,
		MaxRetries:        maxRetries,
		RetryableStatuses: map[int]bool{500: true, 502: true, 503: true, 504: true},
		UserAgent:         "exogate-test",
		Label:             "test",
	}
}

// ============================================================================
//  URL 构建
// ============================================================================

func TestClient_BuildURL(t *testing.T) {
	c := NewClient(map[string]Upstream{
		"nasa": {BaseURL: "https://example.org/TAP/sync"},
		"eu":   {BaseURL: "http://example.net/tap/sync", ExtraParams: map[string]string{"request": "doQuery", "lang": "ADQL"}},
	}, 0, nil)

	t.Run("query is percent-encoded", func(t *testing.T) {
		raw, err := c.BuildURL("nasa", "SELECT a, b FROM t WHERE c = 'x'")
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "example.org", u.Host)
		assert.Equal(t, "/TAP/sync", u.Path)
		assert.Equal(t, "SELECT a, b FROM t WHERE c = 'x'", u.Query().Get("query"))
		assert.Equal(t, "json", u.Query().Get("format"))
		assert.NotContains(t, u.RawQuery, " ")
		assert.NotContains(t, u.RawQuery, "'")
	})

	t.Run("extra params are appended", func(t *testing.T) {
		raw, err := c.BuildURL("eu", "SELECT x FROM y")
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		assert.Equal(t, "doQuery", u.Query().Get("request"))
		assert.Equal(t, "ADQL", u.Query().Get("lang"))
	})

	t.Run("unknown upstream", func(t *testing.T) {
		_, err := c.BuildURL("nowhere", "SELECT 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nowhere")
	})
}

// ============================================================================
//  重试策略
// ============================================================================

func TestClient_Execute_Success(t *testing.T) {
	var gotUA, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.Query().Get("query")
		_, _ = w.Write([]byte(`[{"pl_name":"a"}]`))
	}))
	defer server.Close()

	c, waits := newTestClient(server.URL)
	res, err := c.Execute(context.Background(), "SELECT pl_name FROM ps", retryOpts(0))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.JSONEq(t, `[{"pl_name":"a"}]`, string(res.Body))
	assert.Equal(t, "exogate-test", gotUA)
	assert.Equal(t, "SELECT pl_name FROM ps", gotQuery)
	assert.Empty(t, *waits)
}

func TestClient_Execute_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c, waits := newTestClient(server.URL)
	res, err := c.Execute(context.Background(), "SELECT 1", retryOpts(3))
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, res.Attempts)
	// 指数退避: base, 2*base
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestClient_Execute_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	_, err := c.Execute(context.Background(), "SELECT 1", retryOpts(2))
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Equal(t, 3, httpErr.Attempts)
	assert.Equal(t, "upstream down", string(httpErr.Body))
	assert.True(t, errors.Is(err, port.ErrUpstreamHTTP))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Execute_NonRetryableStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, waits := newTestClient(server.URL)
	_, err := c.Execute(context.Background(), "SELECT 1", retryOpts(3))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *waits)
}

func TestClient_Execute_NoRetryWhenMaxRetriesZero(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	_, err := c.Execute(context.Background(), "SELECT 1", retryOpts(0))
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// ============================================================================
//  超时与连接错误
// ============================================================================

func TestClient_Execute_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	opts := retryOpts(3)
	opts.Timeout = 50 * time.Millisecond

	_, err := c.Execute(context.Background(), "SELECT 1", opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrUpstreamTimeout))

	var toErr *TimeoutError
	require.True(t, errors.As(err, &toErr))
	assert.Equal(t, 1, toErr.Attempts)
}

func TestClient_Execute_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	c, _ := newTestClient(addr)
	_, err := c.Execute(context.Background(), "SELECT 1", retryOpts(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrUpstreamNetwork))
	assert.False(t, errors.Is(err, port.ErrUpstreamTimeout))
}

func TestClient_Backoff(t *testing.T) {
	c := NewClient(nil, time.Second, nil)
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
}
