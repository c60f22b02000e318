// file: internal/transport/http/router/router.go
package router

import (
	"net/http"
	"sort"
	"time"

	"ExoGate/internal/core/port"
	"ExoGate/internal/observe"
	"ExoGate/internal/service"
	"ExoGate/internal/service/tapquery"
	"ExoGate/internal/transport/http/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Pipeline    *tapquery.Pipeline
	Auth        *service.AuthService
	Users       port.UserStore
	Contacts    port.ContactStore
	Admin       *service.AdminService
	RateLimiter *middleware.RateLimiter
	LoginLock   *middleware.LoginFailureLock

	CORSOrigins            []string
	CookieSecure           bool
	AllowGooglePassthrough bool
}

// New 创建并配置基于 Gin 的 HTTP 路由器
func New(deps Dependencies) *gin.Engine {
	router := gin.New()

	// --- 配置全局中间件 ---
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(observe.PrometheusMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	cookies := cookieWriter{secure: deps.CookieSecure, maxAge: deps.Auth.TokenTTL()}
	requireUser := middleware.RequireUser(deps.Auth)
	requireAdmin := middleware.RequireAdmin(deps.Auth, deps.Admin)

	router.GET("/metrics", gin.WrapH(observe.Handler()))
	router.GET("/routes", routesHandler(router))

	api := router.Group("/api")
	{
		// --- 数据平面：TAP 代理 ---
		tapGroup := api.Group("", deps.RateLimiter.DatasetChain()...)
		{
			tapGroup.GET("/datasets", datasetsHandler(deps.Pipeline.Catalog()))
			tapGroup.POST("/tap-query", customQueryHandler(deps.Pipeline))
			tapGroup.GET("/:dataset", datasetHandler(deps.Pipeline))
		}

		// --- 系统/认证平面 ---
		authGroup := api.Group("/auth", deps.RateLimiter.LightweightChain()...)
		{
			authGroup.POST("/signup", signupHandler(deps.Auth, cookies))
			authGroup.POST("/signin", deps.LoginLock.Middleware(), signinHandler(deps.Auth, cookies))
			authGroup.GET("/signout", signoutHandler(cookies))
			authGroup.POST("/setup", setupHandler(deps.Auth, cookies))
			if deps.AllowGooglePassthrough {
				authGroup.POST("/google", googleHandler(deps.Auth, cookies))
			}
		}
		api.GET("/system/status", statusHandler(deps.Users))

		// --- 用户自助 ---
		userGroup := api.Group("/user", deps.RateLimiter.LightweightChain()...)
		{
			userGroup.GET("/test", userTestHandler)
			userGroup.GET("/me", requireUser, meHandler(deps.Users))
			userGroup.POST("/update/:id", requireUser, updateSelfHandler(deps.Users))
			userGroup.DELETE("/delete/:id", requireUser, deleteSelfHandler(deps.Users, deps.Admin, cookies))
			userGroup.GET("/all", requireUser, allUsersHandler(deps.Users))
		}

		// --- 联系表单 ---
		api.POST("/contact", append(deps.RateLimiter.LightweightChain(), contactHandler(deps.Contacts))...)
		api.GET("/contact-messages", requireAdmin, contactMessagesHandler(deps.Admin))

		// --- 控制平面 ---
		adminGroup := api.Group("/admin", requireAdmin)
		{
			adminGroup.GET("/users", adminUsersHandler(deps.Admin))
			adminGroup.PATCH("/user/:id/role", adminRoleHandler(deps.Admin))
			adminGroup.DELETE("/user/:id", adminDeleteUserHandler(deps.Admin))
			adminGroup.GET("/stats", adminStatsHandler(deps.Admin))
			adminGroup.GET("/settings", adminGetSettingsHandler(deps.Admin))
			adminGroup.PUT("/settings", adminUpdateSettingsHandler(deps.Admin, deps.RateLimiter))
			adminGroup.GET("/audit-trail", adminAuditTrailHandler(deps.Admin))
		}
	}

	return router
}

// routesHandler 列出所有已注册的路由
func routesHandler(engine *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		routes := engine.Routes()
		out := make([]gin.H, 0, len(routes))
		for _, r := range routes {
			out = append(out, gin.H{"method": r.Method, "path": r.Path})
		}
		sort.Slice(out, func(i, j int) bool {
			pi, pj := out[i]["path"].(string), out[j]["path"].(string)
			if pi != pj {
				return pi < pj
			}
			return out[i]["method"].(string) < out[j]["method"].(string)
		})
		c.JSON(http.StatusOK, out)
	}
}

// statusHandler 返回系统状态，用于前端判断是否需要进入安装流程
func statusHandler(users port.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := users.Count(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if n > 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ready_for_login"})
		} else {
			c.JSON(http.StatusOK, gin.H{"status": "needs_setup"})
		}
	}
}
