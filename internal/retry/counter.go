// Package retry 提供有上限的重试计数器
package retry

import "sync"

// MaxAttempts 单次用户操作允许的最大尝试次数（含首次）
const MaxAttempts = 3

// Counter 重试计数器，并发安全
//
// 计数器只负责计数，何时可重试由调用方根据错误类型决定。
type Counter struct {
	mu       sync.Mutex
	attempts int
	max      int
}

// NewCounter 创建计数器，max <= 0 时使用 MaxAttempts
func NewCounter(max int) *Counter {
	if max <= 0 {
		max = MaxAttempts
	}
	return &Counter{max: max}
}

func (c *Counter) limit() int {
	if c.max <= 0 {
		return MaxAttempts
	}
	return c.max
}

// CanRetry 是否还有剩余尝试次数
func (c *Counter) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts < c.limit()
}

// IncrementAndRetry 仍有余量时计数并执行 fn，返回是否执行
func (c *Counter) IncrementAndRetry(fn func()) bool {
	c.mu.Lock()
	if c.attempts >= c.limit() {
		c.mu.Unlock()
		return false
	}
	c.attempts++
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Reset 新的用户操作开始时清零
func (c *Counter) Reset() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
}

// Attempts 已使用的次数
func (c *Counter) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Remaining 剩余次数
func (c *Counter) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit() - c.attempts
}
