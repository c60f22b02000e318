// file: internal/transport/http/router/admin_handlers.go
package router

import (
	"net/http"

	"ExoGate/internal/service"
	"ExoGate/internal/transport/http/middleware"

	"github.com/gin-gonic/gin"
)

func contactMessagesHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := admin.ContactMessages(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

func adminUsersHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := admin.Users(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func adminRoleHandler(admin *service.AdminService) gin.HandlerFunc {
	type RequestBody struct {
		Role string `json:"role"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		if err := admin.ChangeRole(c.Request.Context(), currentClaim(c).ID, c.Param("id"), req.Role); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
	}
}

func adminDeleteUserHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := admin.DeleteUser(c.Request.Context(), currentClaim(c).ID, c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User deleted by admin"})
	}
}

func adminStatsHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := admin.Stats(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func adminGetSettingsHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := admin.Settings(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// adminUpdateSettingsHandler 浅合并后重新加载单 IP 限流覆盖值
func adminUpdateSettingsHandler(admin *service.AdminService, limiter *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]interface{}
		if err := c.ShouldBindJSON(&patch); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		if _, err := admin.UpdateSettings(c.Request.Context(), currentClaim(c).ID, patch); err != nil {
			_ = c.Error(err)
			return
		}
		limiter.LoadIPDefaults(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"message": "Settings updated"})
	}
}

func adminAuditTrailHandler(admin *service.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := admin.AuditTrail(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
