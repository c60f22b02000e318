// file: internal/transport/http/middleware/auth_test.go
package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ExoGate/internal/core/port"
	"ExoGate/internal/service"
	"ExoGate/internal/transport/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
//  测试替身
// ============================================================================

type stubParser map[string]*service.Claim

func (p stubParser) ParseToken(token string) (*service.Claim, error) {
	if c, ok := p[token]; ok {
		return c, nil
	}
	return nil, service.ErrInvalidToken
}

type stubRoles map[string]string

func (r stubRoles) RoleOf(_ context.Context, id string) (string, error) {
	if role, ok := r[id]; ok {
		return role, nil
	}
	return "", port.ErrUserNotFound
}

func init() { gin.SetMode(gin.TestMode) }

// newGuardedEngine 被保护的处理器把看到的 claim 写回响应
func newGuardedEngine(guard gin.HandlerFunc, reached *bool) *gin.Engine {
	r := gin.New()
	r.GET("/guarded", guard, func(c *gin.Context) {
		*reached = true
		claim := service.ClaimFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": claim.ID, "role": claim.Role})
	})
	return r
}

func doGet(r http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bodyError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	s, _ := m["error"].(string)
	return s
}

func TestRequireUser(t *testing.T) {
	parser := stubParser{"good": {ID: "u1", Role: "user"}}

	t.Run("无令牌 401", func(t *testing.T) {
		reached := false
		w := doGet(newGuardedEngine(middleware.RequireUser(parser), &reached), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Unauthorized", bodyError(t, w))
		assert.False(t, reached)
	})

	t.Run("无效令牌 403", func(t *testing.T) {
		reached := false
		w := doGet(newGuardedEngine(middleware.RequireUser(parser), &reached), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "bad"})
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Forbidden", bodyError(t, w))
		assert.False(t, reached)
	})

	t.Run("cookie 令牌", func(t *testing.T) {
		reached := false
		w := doGet(newGuardedEngine(middleware.RequireUser(parser), &reached), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "good"})
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
		assert.JSONEq(t, `{"id":"u1","role":"user"}`, w.Body.String())
	})

	t.Run("Bearer 令牌", func(t *testing.T) {
		reached := false
		w := doGet(newGuardedEngine(middleware.RequireUser(parser), &reached), func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer good")
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
	})
}

func TestRequireAdmin(t *testing.T) {
	parser := stubParser{
		"admin":    {ID: "a1", Role: "user"}, // 令牌内角色已过时，以存储为准
		"user":     {ID: "u1", Role: "admin"},
		"orphaned": {ID: "gone", Role: "admin"},
	}
	roles := stubRoles{"a1": "admin", "u1": "user"}
	guard := middleware.RequireAdmin(parser, roles)

	testCases := []struct {
		name     string
		token    string
		wantCode int
		wantErr  string
	}{
		{"无令牌", "", http.StatusUnauthorized, "Unauthorized"},
		{"无效令牌", "bad", http.StatusForbidden, "Invalid token"},
		{"非管理员", "user", http.StatusForbidden, "Forbidden. Admin only."},
		{"用户已删除", "orphaned", http.StatusForbidden, "Forbidden. Admin only."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reached := false
			w := doGet(newGuardedEngine(guard, &reached), func(r *http.Request) {
				if tc.token != "" {
					r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: tc.token})
				}
			})
			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantErr, bodyError(t, w))
			assert.False(t, reached)
		})
	}

	t.Run("管理员放行", func(t *testing.T) {
		reached := false
		w := doGet(newGuardedEngine(guard, &reached), func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: "admin"})
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, reached)
		assert.JSONEq(t, `{"id":"a1","role":"admin"}`, w.Body.String())
	})
}

func TestErrorHandlingMiddleware(t *testing.T) {
	testCases := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{port.ErrUserExists, http.StatusBadRequest, "User already exists"},
		{port.ErrInvalidRole, http.StatusBadRequest, "Invalid role"},
		{port.ErrEmptyPassword, http.StatusBadRequest, "Password cannot be empty"},
		{port.ErrInvalidCredentials, http.StatusUnauthorized, "Wrong credentials!"},
		{port.ErrPermissionDenied, http.StatusForbidden, "Forbidden"},
		{port.ErrUserNotFound, http.StatusNotFound, "User not found!"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range testCases {
		t.Run(tc.wantErr, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.ErrorHandlingMiddleware())
			r.GET("/guarded", func(c *gin.Context) { _ = c.Error(tc.err) })
			w := doGet(r, nil)
			assert.Equal(t, tc.wantCode, w.Code)
			assert.Equal(t, tc.wantErr, bodyError(t, w))
		})
	}

	t.Run("校验失败", func(t *testing.T) {
		r := gin.New()
		r.Use(middleware.ErrorHandlingMiddleware())
		r.GET("/guarded", func(c *gin.Context) {
			var body struct {
				Email string `json:"email" binding:"required,email"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				_ = c.Error(err).SetType(gin.ErrorTypeBind)
				return
			}
		})
		req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
		req.Header.Set("Content-Type", "application/json")
		req.Body = http.NoBody
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", bodyError(t, w))
	})
}
