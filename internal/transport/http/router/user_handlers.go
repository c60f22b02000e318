// file: internal/transport/http/router/user_handlers.go
package router

import (
	"net/http"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"
	"ExoGate/internal/service"

	"github.com/gin-gonic/gin"
)

func userTestHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API route is working!"})
}

func meHandler(users port.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.FindByID(c.Request.Context(), currentClaim(c).ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// updateSelfHandler 只能修改自己的账户；密码字段会被重新哈希
func updateSelfHandler(users port.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if currentClaim(c).ID != id {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "You can only update your own account!"})
			return
		}
		var upd domain.UserUpdate
		if err := c.ShouldBindJSON(&upd); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		user, err := users.Update(c.Request.Context(), id, upd)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func deleteSelfHandler(users port.UserStore, admin *service.AdminService, cookies cookieWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if currentClaim(c).ID != id {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "You can only delete your own account!"})
			return
		}
		if err := users.Delete(c.Request.Context(), id); err != nil {
			_ = c.Error(err)
			return
		}
		admin.ForgetUser(id)
		cookies.clear(c)
		c.JSON(http.StatusOK, gin.H{"message": "User has been deleted!"})
	}
}

// allUsersHandler 返回的 domain.User 不包含密码哈希
func allUsersHandler(users port.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := users.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func contactHandler(contacts port.ContactStore) gin.HandlerFunc {
	type RequestBody struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
			return
		}
		_, err := contacts.Add(c.Request.Context(), domain.ContactMessage{Name: req.Name, Email: req.Email, Message: req.Message})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Message received"})
	}
}
