package api

import (
	_ "promptlib/api/docs"
	"promptlib/api/handlers/prompts"
	"promptlib/internal/auth"
	"promptlib/internal/metrics"
	middlewarepkg "promptlib/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 创建 Gin 路由并注册全部路由
func SetupRouter(container *AppContainer) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middlewarepkg.RequestIDMiddleware(),
		RequestLogger(),
		CORS(container.Config.Server.CORSOrigins),
		metrics.PrometheusMiddleware(),
	)

	router.GET("/health", HealthCheck())
	router.GET("/ready", ReadinessCheck(container.DB, container.Redis))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	RegisterRoutes(router, container)
	return router
}

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer) {
	h := container.Handlers

	// 认证 API（公开，不需要 JWT）
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
	}

	apiGroup := router.Group("/api")
	apiGroup.Use(auth.AuthMiddleware(container.JWTService))

	prompts.RegisterRoutes(apiGroup, h.Prompts, middlewarepkg.RateLimitMiddleware(container.RateLimiter))
	apiGroup.GET("/ws/notifications", h.Notifications.Connect)
}
