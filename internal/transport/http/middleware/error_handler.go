// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"ExoGate/internal/core/port"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误后直接返回，由这里统一决定状态码与响应体。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		// 我们只处理最后一个错误，因为它通常是根本原因
		lastError := c.Errors.Last()
		writeError(c, lastError.Err, lastError.IsType(gin.ErrorTypeBind))
	}
}

// AbortWithError 立即写出错误响应。
// 外层中间件需要在 c.Next() 之后读取状态码时（例如登录锁定）使用它代替 c.Error。
func AbortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	writeError(c, err, false)
	c.Abort()
}

// AbortWithBindError 请求体解析或校验失败
func AbortWithBindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	writeError(c, err, true)
	c.Abort()
}

func writeError(c *gin.Context, err error, isBind bool) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]gin.H, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, gin.H{"field": fe.Field(), "tag": fe.Tag()})
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": fields})
		return
	}
	if isBind {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch {
	case errors.Is(err, port.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
	case errors.Is(err, port.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
	case errors.Is(err, port.ErrEmptyPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password cannot be empty"})
	case errors.Is(err, port.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Wrong credentials!"})
	case errors.Is(err, port.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, port.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found!"})
	case errors.Is(err, port.ErrDatasetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
	default:
		slog.Error("请求处理失败", "path", c.FullPath(), "method", c.Request.Method, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
