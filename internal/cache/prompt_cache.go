package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptlib/internal/config"
	"promptlib/internal/logger"
	"promptlib/internal/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix  = "promptlib:prompt:"
	defaultChannel = "promptlib:prompt_invalidations"
)

// Remote 共享缓存所需的 Redis 命令
type Remote interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Subscriber 订阅失效广播
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// PromptCache 提示词详情缓存
//
// 本地 LFU 在前，Redis 为可选的共享层。保存成功后 Invalidate
// 删除本地与共享条目，并通过频道通知其他实例丢弃本地副本。
type PromptCache struct {
	local    *LFU
	remote   Remote
	prefix   string
	channel  string
	ttl      time.Duration
	instance string
	logger   *zap.Logger
}

// Option PromptCache 选项
type Option func(*PromptCache)

// WithRemote 使用 Redis 作为共享层
func WithRemote(r Remote) Option {
	return func(c *PromptCache) { c.remote = r }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *PromptCache) { c.logger = l }
}

// NewPromptCache 创建提示词缓存
func NewPromptCache(cfg config.RedisConfig, capacity int, ttl time.Duration, opts ...Option) *PromptCache {
	c := &PromptCache{
		local:    NewLFU(capacity, ttl),
		prefix:   cfg.CachePrefix,
		channel:  cfg.InvalidationChannel,
		ttl:      ttl,
		instance: uuid.New().String(),
	}
	if c.prefix == "" {
		c.prefix = defaultPrefix
	}
	if c.channel == "" {
		c.channel = defaultChannel
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("cache")
	}
	return c
}

func (c *PromptCache) key(id string) string {
	return c.prefix + id
}

// Get 读取缓存的详情，本地未命中时查询共享层
func (c *PromptCache) Get(ctx context.Context, id string) ([]byte, bool) {
	if data, ok := c.local.Get(id); ok {
		return data, true
	}
	if c.remote == nil {
		return nil, false
	}
	data, err := c.remote.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("共享缓存读取失败", zap.String("prompt_id", id), zap.Error(err))
		}
		return nil, false
	}
	c.local.Set(id, data)
	return data, true
}

// Set 写入详情缓存，共享层写入失败只记录日志
func (c *PromptCache) Set(ctx context.Context, id string, data []byte) {
	c.local.Set(id, data)
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Debug("共享缓存写入失败", zap.String("prompt_id", id), zap.Error(err))
	}
}

// Invalidate 失效某条提示词的缓存
func (c *PromptCache) Invalidate(ctx context.Context, id string) error {
	c.local.Delete(id)
	if c.remote == nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("local").Inc()
		return nil
	}

	if err := c.remote.Del(ctx, c.key(id)).Err(); err != nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("delete cached prompt %s: %w", id, err)
	}
	if err := c.remote.Publish(ctx, c.channel, c.instance+"|"+id).Err(); err != nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish invalidation for %s: %w", id, err)
	}
	metrics.CacheInvalidationsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Listen 订阅失效广播并丢弃本地副本，直到 ctx 结束
func (c *PromptCache) Listen(ctx context.Context, sub Subscriber) error {
	ps := sub.Subscribe(ctx, c.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}
	c.logger.Info("已订阅缓存失效频道", zap.String("channel", c.channel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			c.handleMessage(msg.Payload)
		}
	}
}

// handleMessage 处理 "instance|id" 格式的广播，忽略本实例发出的消息
func (c *PromptCache) handleMessage(payload string) {
	from, id, ok := strings.Cut(payload, "|")
	if !ok || id == "" {
		c.logger.Warn("忽略无效的缓存失效消息", zap.String("payload", payload))
		return
	}
	if from == c.instance {
		return
	}
	if c.local.Delete(id) {
		metrics.CacheInvalidationsTotal.WithLabelValues("remote").Inc()
	}
}

// Stats 本地缓存统计
func (c *PromptCache) Stats() map[string]any {
	return c.local.Stats()
}
