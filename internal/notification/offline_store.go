package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OfflineStore 缓存用户离线期间的通知，新消息在前
type OfflineStore interface {
	Append(ctx context.Context, userID string, payload []byte) error
	Drain(ctx context.Context, userID string) ([][]byte, error)
}

// MemoryOfflineStore 简单内存实现
type MemoryOfflineStore struct {
	mu    sync.Mutex
	limit int
	data  map[string][][]byte
}

// NewMemoryOfflineStore 创建内存存储
func NewMemoryOfflineStore(limit int) *MemoryOfflineStore {
	if limit <= 0 {
		limit = 50
	}
	return &MemoryOfflineStore{
		limit: limit,
		data:  make(map[string][][]byte),
	}
}

func (s *MemoryOfflineStore) Append(_ context.Context, userID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := append([][]byte{append([]byte(nil), payload...)}, s.data[userID]...)
	if len(queue) > s.limit {
		queue = queue[:s.limit]
	}
	s.data[userID] = queue
	return nil
}

func (s *MemoryOfflineStore) Drain(_ context.Context, userID string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.data[userID]
	delete(s.data, userID)
	return queue, nil
}

// RedisOfflineStore 基于 Redis 列表的实现
type RedisOfflineStore struct {
	client redis.Cmdable
	limit  int
	ttl    time.Duration
}

// NewRedisOfflineStore 创建 redis 存储
func NewRedisOfflineStore(client redis.Cmdable, limit int, ttl time.Duration) *RedisOfflineStore {
	if limit <= 0 {
		limit = 100
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisOfflineStore{client: client, limit: limit, ttl: ttl}
}

func (s *RedisOfflineStore) Append(ctx context.Context, userID string, payload []byte) error {
	if s == nil || s.client == nil {
		return nil
	}
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, int64(s.limit-1))
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisOfflineStore) Drain(ctx context.Context, userID string) ([][]byte, error) {
	if s == nil || s.client == nil {
		return nil, nil
	}
	key := s.key(userID)
	values, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if len(values) > 0 {
		_ = s.client.Del(ctx, key).Err()
	}
	result := make([][]byte, 0, len(values))
	for _, v := range values {
		result = append(result, []byte(v))
	}
	return result, nil
}

func (s *RedisOfflineStore) key(userID string) string {
	return "promptlib:notice_offline:" + userID
}
