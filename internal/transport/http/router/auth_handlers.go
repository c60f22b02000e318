// file: internal/transport/http/router/auth_handlers.go
package router

import (
	"net/http"
	"time"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/service"
	"ExoGate/internal/transport/http/middleware"

	"github.com/gin-gonic/gin"
)

// cookieWriter 统一写入/清除访问令牌 cookie（HttpOnly, SameSite=None）
type cookieWriter struct {
	secure bool
	maxAge time.Duration
}

func (w cookieWriter) set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middleware.TokenCookie, token, int(w.maxAge.Seconds()), "/", "", w.secure, true)
}

func (w cookieWriter) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", w.secure, true)
}

// signupHandler 注册普通用户
func signupHandler(auth *service.AuthService, cookies cookieWriter) gin.HandlerFunc {
	type RequestBody struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindError(c, err)
			return
		}
		user, token, err := auth.SignUp(c.Request.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		cookies.set(c, token)
		c.JSON(http.StatusCreated, user)
	}
}

// signinHandler 错误必须立即写出，登录锁定中间件依赖状态码计数
func signinHandler(auth *service.AuthService, cookies cookieWriter) gin.HandlerFunc {
	type RequestBody struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindError(c, err)
			return
		}
		user, token, err := auth.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			middleware.AbortWithError(c, err)
			return
		}
		cookies.set(c, token)
		c.JSON(http.StatusOK, user)
	}
}

// googleHandler 信任前端完成的 Google 登录，仅在配置开启时注册
func googleHandler(auth *service.AuthService, cookies cookieWriter) gin.HandlerFunc {
	type RequestBody struct {
		Email string `json:"email" binding:"required"`
		Name  string `json:"name" binding:"required"`
		Photo string `json:"photo"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindError(c, err)
			return
		}
		user, token, err := auth.ExternalLogin(c.Request.Context(), req.Name, req.Email, req.Photo)
		if err != nil {
			_ = c.Error(err)
			return
		}
		cookies.set(c, token)
		c.JSON(http.StatusOK, user)
	}
}

func signoutHandler(cookies cookieWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookies.clear(c)
		c.JSON(http.StatusOK, gin.H{"message": "User has been logged out!"})
	}
}

// setupHandler 使用启动时打印的初始化令牌创建第一个管理员
func setupHandler(auth *service.AuthService, cookies cookieWriter) gin.HandlerFunc {
	type RequestBody struct {
		SetupToken string `json:"setup_token" binding:"required"`
		Username   string `json:"username" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
		Password   string `json:"password" binding:"required,min=8"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.AbortWithBindError(c, err)
			return
		}
		user, token, err := auth.SetupAdmin(c.Request.Context(), req.SetupToken, req.Username, req.Email, req.Password)
		if err != nil {
			_ = c.Error(err)
			return
		}
		cookies.set(c, token)
		c.JSON(http.StatusCreated, user)
	}
}

// currentClaim RequireUser/RequireAdmin 之后的处理器才能调用
func currentClaim(c *gin.Context) *service.Claim {
	if claim := service.ClaimFrom(c.Request.Context()); claim != nil {
		return claim
	}
	return &service.Claim{ID: "unknown", Role: domain.RoleUser}
}
