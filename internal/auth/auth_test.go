package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptlib/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlacklist struct {
	keys   map[string]time.Duration
	getErr error
}

func (m *memBlacklist) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	if m.getErr != nil {
		return redis.NewIntResult(0, m.getErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memBlacklist) Set(_ context.Context, key string, _ any, ttl time.Duration) *redis.StatusCmd {
	m.keys[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func newTestService(bl Blacklist) *JWTService {
	return NewJWTService(config.AuthConfig{JWTSecret: "test-secret", Issuer: "promptlib", TokenTTL: time.Hour}, bl)
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	pair, err := svc.GenerateTokenPair("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := svc.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	_, err = svc.ValidateToken(ctx, "not-a-token")
	assert.Error(t, err)

	other := NewJWTService(config.AuthConfig{JWTSecret: "other", Issuer: "promptlib"}, nil)
	_, err = other.ValidateToken(ctx, pair.AccessToken)
	assert.Error(t, err, "签名密钥不同")
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestService(nil)
	pair, err := svc.GenerateTokenPair("alice")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(context.Background(), pair.AccessToken)
	assert.Error(t, err)
}

func TestJWTService_Refresh(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	pair, err := svc.GenerateTokenPair("alice")
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(ctx, pair.AccessToken)
	assert.Error(t, err, "访问令牌不能用于刷新")

	next, err := svc.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)
}

func TestJWTService_InvalidateToken(t *testing.T) {
	bl := &memBlacklist{keys: make(map[string]time.Duration)}
	svc := newTestService(bl)
	ctx := context.Background()
	pair, err := svc.GenerateTokenPair("alice")
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateToken(ctx, pair.AccessToken))
	assert.True(t, svc.IsTokenBlacklisted(ctx, pair.AccessToken))
	_, err = svc.ValidateToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	bl.getErr = errors.New("redis down")
	assert.False(t, svc.IsTokenBlacklisted(ctx, pair.AccessToken))
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("abc"))
	assert.Equal(t, "", ExtractTokenFromBearer(""))
}

func newRouter(svc *JWTService, mw func(*JWTService) gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", mw(svc), func(c *gin.Context) {
		actor, ok := ActorFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"actor": actor, "ok": ok})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	svc := newTestService(nil)
	r := newRouter(svc, AuthMiddleware)
	pair, err := svc.GenerateTokenPair("alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "Bearer garbage", "", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, "", http.StatusUnauthorized},
		{"header", "Bearer " + pair.AccessToken, "", http.StatusOK},
		{"query", "", "?access_token=" + pair.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"actor":"alice","ok":true}`, w.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	svc := newTestService(nil)
	r := newRouter(svc, OptionalAuthMiddleware)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"actor":"","ok":false}`, w.Body.String())
}
