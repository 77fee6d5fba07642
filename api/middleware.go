package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"promptlib/internal/auth"
	"promptlib/internal/logger"
	middlewarepkg "promptlib/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger 请求日志中间件，5xx 记为 Error，4xx 记为 Warn，探针请求只在 Debug 级别输出
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		level := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			level = zapcore.WarnLevel
		case c.Request.URL.Path == "/health" || c.Request.URL.Path == "/ready":
			level = zapcore.DebugLevel
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", middlewarepkg.GetRequestID(c.Request.Context())),
		}
		if actor, ok := auth.ActorFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("user_id", actor))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.WithContext(c.Request.Context()).Check(level, "HTTP Request").Write(fields...)
	}
}

var (
	corsHeaders = strings.Join([]string{
		"Content-Type", "Authorization", "Accept", "Origin", "Cache-Control",
		"X-Requested-With", middlewarepkg.HeaderRequestID, middlewarepkg.HeaderTraceID, "X-Save-Session",
	}, ", ")
	corsExposed = strings.Join([]string{
		middlewarepkg.HeaderRequestID, middlewarepkg.HeaderTraceID, "X-Save-Session", "Retry-After",
	}, ", ")
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

// CORS 跨域中间件
//
// origins 为空时返回通配来源，此时浏览器不会携带凭证；否则只回显白名单内的来源。
func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case len(origins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", corsExposed)
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
