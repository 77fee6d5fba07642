package prompts

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册 Prompt 路由，g 需已挂载认证中间件
func RegisterRoutes(g *gin.RouterGroup, h *Handler, saveGuards ...gin.HandlerFunc) {
	prompts := g.Group("/prompts")
	{
		prompts.GET("", h.List)
		prompts.GET("/:id", h.Get)
		prompts.GET("/:id/permission", h.Permission)
		prompts.GET("/:id/versions", h.Versions)
		prompts.POST("/:id/shares", h.Share)
		prompts.DELETE("/:id/shares/:user_id", h.Unshare)

		save := prompts.Group("", saveGuards...)
		save.POST("", h.Create)
		save.PUT("/:id", h.Update)
		save.POST("/save-sessions/:session_id/retry", h.Retry)
	}
}
