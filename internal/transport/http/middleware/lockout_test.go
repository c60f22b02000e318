// file: internal/transport/http/middleware/lockout_test.go
package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ExoGate/internal/transport/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSigninEngine(lock *middleware.LoginFailureLock, calls *int) *gin.Engine {
	r := gin.New()
	r.POST("/signin", lock.Middleware(), func(c *gin.Context) {
		*calls++
		body, _ := io.ReadAll(c.Request.Body)
		if strings.Contains(string(body), `"password":"right"`) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong credentials!"})
	})
	return r
}

func signin(r http.Handler, email, password string) int {
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestLoginFailureLock_LocksAfterMaxFailures(t *testing.T) {
	calls := 0
	r := newSigninEngine(middleware.NewLoginFailureLock(3, time.Minute), &calls)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, signin(r, "x@example.com", "wrong"))
	}
	assert.Equal(t, 3, calls)

	// 锁定期间即使密码正确也不会到达处理器
	assert.Equal(t, http.StatusUnauthorized, signin(r, "x@example.com", "right"))
	assert.Equal(t, 3, calls)

	// 其他账户不受影响，处理器能读到完整请求体
	assert.Equal(t, http.StatusOK, signin(r, "y@example.com", "right"))
	assert.Equal(t, 4, calls)
}

func TestLoginFailureLock_SuccessResetsCounter(t *testing.T) {
	calls := 0
	r := newSigninEngine(middleware.NewLoginFailureLock(2, time.Minute), &calls)

	assert.Equal(t, http.StatusUnauthorized, signin(r, "z@example.com", "wrong"))
	assert.Equal(t, http.StatusOK, signin(r, "Z@example.com", "right"))
	assert.Equal(t, http.StatusUnauthorized, signin(r, "z@example.com", "wrong"))
	assert.Equal(t, http.StatusOK, signin(r, "z@example.com", "right"), "成功登录后失败计数应清零")
}
