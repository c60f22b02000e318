// Package middleware file: internal/transport/http/middleware/lockout.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// ============================================================================
//  失败计数与临时锁定 (Failure Counting & Temporary Lockout)
// ============================================================================

// LoginFailureLock 按 (IP, 邮箱) 统计登录失败次数，达到上限后临时锁定
type LoginFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	lockoutDuration time.Duration
}

// NewLoginFailureLock 创建一个新的登录失败锁定器
func NewLoginFailureLock(maxFailures int, lockoutDuration time.Duration) *LoginFailureLock {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if lockoutDuration <= 0 {
		lockoutDuration = 15 * time.Minute
	}
	return &LoginFailureLock{
		failureCache:    cache.New(lockoutDuration, 10*time.Minute),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
	}
}

// peekEmail 读取 JSON 请求体中的 email 字段，并把请求体放回原处
func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var extractor struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(body, &extractor)
	return strings.ToLower(strings.TrimSpace(extractor.Email))
}

// Middleware 包裹登录处理器：处理器返回 401 计为一次失败，返回 200 清零。
// 被锁定期间的请求直接以与密码错误相同的响应拒绝。
func (l *LoginFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := peekEmail(c)
		ip := c.ClientIP()
		lockKey := "lock:" + ip + ":" + email
		failureKey := "failures:" + ip + ":" + email

		if _, found := l.failureCache.Get(lockKey); found {
			slog.Warn("[Login Lock] 已锁定的账户再次尝试登录", "email", email, "ip", ip)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Wrong credentials!"})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			current, err := l.failureCache.IncrementInt64(failureKey, 1)
			if err != nil {
				// 第一次失败
				l.failureCache.Set(failureKey, int64(1), l.lockoutDuration)
				current = 1
			}
			slog.Info("[Login Failure] 登录失败", "email", email, "ip", ip, "failures", current)

			if current >= int64(l.maxFailures) {
				l.failureCache.Set(lockKey, true, l.lockoutDuration)
				l.failureCache.Delete(failureKey)
				slog.Warn("[Login Lock] 账户已被临时锁定", "email", email, "ip", ip, "duration", l.lockoutDuration)
			}
		case http.StatusOK:
			l.failureCache.Delete(failureKey)
		}
	}
}
