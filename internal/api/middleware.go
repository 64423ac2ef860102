package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/session"
)

const (
	requestIDKey = "request_id"
	loggerKey    = "logger"
)

// CORSMiddleware handles Cross-Origin Resource Sharing.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Requested-With, X-User-ID, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware adds a unique request ID to each request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggerMiddleware writes one structured access log line per request and exposes a
// request-scoped logger to handlers.
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With(zap.String("request_id", c.GetString(requestIDKey)))
		c.Set(loggerKey, reqLogger)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			reqLogger.Error("Request failed", fields...)
			return
		}
		reqLogger.Info("Request handled", fields...)
	}
}

// SessionMiddleware builds the caller's session from the bearer token and the
// X-User-ID header and stores it in the request context.
// Requests without a token get no session.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if ok && strings.TrimSpace(token) != "" {
			sess := session.New(strings.TrimSpace(token), c.GetHeader("X-User-ID"))
			c.Request = c.Request.WithContext(session.WithContext(c.Request.Context(), sess))
		}
		c.Next()
	}
}

// RequireSession rejects requests that carry no usable session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.FromContext(c.Request.Context()).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Success: false,
				Error:   "Authorization header required",
				Code:    "UNAUTHORIZED",
			})
			return
		}
		c.Next()
	}
}
