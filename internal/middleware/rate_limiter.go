// Package middleware 提供请求追踪与限流中间件
package middleware

import (
	"net/http"
	"sync"
	"time"

	"promptlib/internal/auth"
	"promptlib/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	RequestsPerSecond float64       // 每秒补充的令牌数
	BurstSize         int           // 突发容量
	IdleTTL           time.Duration // 超过该时长未访问的客户端被清理
	CleanupInterval   time.Duration
}

// DefaultRateLimiterConfig 默认配置
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
		IdleTTL:           10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

type clientState struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按客户端键的令牌桶限流器
type RateLimiter struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter 创建限流器，需要调用 Stop 结束清理协程
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	d := DefaultRateLimiterConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = d.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = d.BurstSize
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = d.IdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = d.CleanupInterval
	}

	rl := &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow 检查 key 是否还有令牌
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	state, ok := rl.clients[key]
	if !ok {
		state = &clientState{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)}
		rl.clients[key] = state
	}
	now := rl.now()
	state.lastSeen = now
	rl.mu.Unlock()

	return state.limiter.AllowN(now, 1)
}

// Sweep 清理空闲客户端，返回清理数量
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.cfg.IdleTTL)
	removed := 0
	for key, state := range rl.clients {
		if state.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop 停止清理协程
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// RateLimitMiddleware 限流中间件，已认证请求按用户限流，否则按 IP
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := auth.ActorFromContext(c.Request.Context())
		if !ok {
			key = "ip:" + c.ClientIP()
		}

		if !limiter.Allow(key) {
			metrics.SaveRateLimitedTotal.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		c.Next()
	}
}
