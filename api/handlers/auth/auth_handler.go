// Package auth 提供令牌刷新与登出接口
package auth

import (
	"net/http"

	"promptlib/api/handlers/common"
	"promptlib/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 认证处理器
//
// 令牌由外部身份服务或 cmd/tools/issue_token 签发，这里只负责刷新与注销。
type AuthHandler struct {
	jwtService *auth.JWTService
	logger     *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(jwtService *auth.JWTService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{jwtService: jwtService, logger: logger}
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh 刷新访问令牌
// @Summary 刷新令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "刷新令牌"
// @Success 200 {object} auth.TokenPair
// @Failure 401 {object} common.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "INVALID_REQUEST", "参数错误")
		return
	}

	pair, err := h.jwtService.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "刷新令牌失败")
		return
	}

	// 旧刷新令牌只能使用一次
	if err := h.jwtService.InvalidateToken(c.Request.Context(), req.RefreshToken); err != nil {
		h.logger.Warn("注销旧刷新令牌失败", zap.Error(err))
	}
	c.JSON(http.StatusOK, pair)
}

// Logout 登出
// @Summary 登出
// @Description 将当前访问令牌与可选的刷新令牌加入黑名单
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} false "可选：要撤销的刷新令牌"
// @Success 200 {object} map[string]string
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	ctx := c.Request.Context()

	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		if err := h.jwtService.InvalidateToken(ctx, req.RefreshToken); err != nil {
			h.logger.Warn("注销刷新令牌失败", zap.Error(err))
		}
	}

	if token := auth.ExtractTokenFromBearer(c.GetHeader("Authorization")); token != "" {
		if err := h.jwtService.InvalidateToken(ctx, token); err != nil {
			h.logger.Warn("注销访问令牌失败", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "登出成功"})
}
