package auth

import (
	"context"
	"net/http"

	"promptlib/internal/logger"

	"github.com/gin-gonic/gin"
)

// ContextKey 上下文键类型
type ContextKey string

// UserContextKey 用户上下文键
const UserContextKey ContextKey = "user"

// UserContext 已认证用户
type UserContext struct {
	UserID string
}

// AuthMiddleware JWT 认证中间件
//
// 浏览器 WebSocket 无法设置请求头，因此也接受 access_token 查询参数。
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "令牌验证失败: " + err.Error()})
			return
		}
		if claims.TokenType != TokenTypeAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "令牌类型错误"})
			return
		}

		setUser(c, &UserContext{UserID: claims.UserID})
		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证，令牌无效时按匿名请求继续
func OptionalAuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}
		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err == nil && claims.TokenType == TokenTypeAccess {
			setUser(c, &UserContext{UserID: claims.UserID})
		}
		c.Next()
	}
}

func setUser(c *gin.Context, user *UserContext) {
	c.Set(string(UserContextKey), user)
	ctx := SetUserContext(c.Request.Context(), user)
	ctx = logger.WithUserID(ctx, user.UserID)
	c.Request = c.Request.WithContext(ctx)
}

// GetUserContext 从 Gin Context 获取用户上下文
func GetUserContext(c *gin.Context) (*UserContext, bool) {
	v, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil, false
	}
	user, ok := v.(*UserContext)
	return user, ok
}

// SetUserContext 在标准 context.Context 中设置用户上下文
func SetUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserContextFromStdContext 从标准 context.Context 获取用户上下文
func GetUserContextFromStdContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	return user, ok
}

// ActorFromContext 当前操作者 ID，未认证时返回 false
func ActorFromContext(ctx context.Context) (string, bool) {
	user, ok := GetUserContextFromStdContext(ctx)
	if !ok || user == nil || user.UserID == "" {
		return "", false
	}
	return user.UserID, true
}
