package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLFU_BasicOperations 基本读写删除
func TestLFU_BasicOperations(t *testing.T) {
	c := NewLFU(3, 0)

	c.Set("key1", []byte("v1"))
	c.Set("key2", []byte("v2"))

	got, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.True(t, c.Delete("key1"))
	assert.False(t, c.Delete("key1"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

// TestLFU_EvictsLeastFrequent 淘汰访问频率最低的条目
func TestLFU_EvictsLeastFrequent(t *testing.T) {
	c := NewLFU(3, 0)
	c.Set("key1", []byte("1"))
	c.Set("key2", []byte("2"))
	c.Set("key3", []byte("3"))

	c.Get("key1")
	c.Get("key1")
	c.Get("key2")

	c.Set("key4", []byte("4"))

	_, ok := c.Get("key3")
	assert.False(t, ok, "key3 访问最少，应被淘汰")
	for _, k := range []string{"key1", "key2", "key4"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

// TestLFU_SameFrequencyFIFO 频率相同时淘汰最早写入的条目
func TestLFU_SameFrequencyFIFO(t *testing.T) {
	c := NewLFU(2, 0)
	c.Set("a", nil)
	c.Set("b", nil)
	c.Set("c", nil)

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

// TestLFU_EvictAfterDelete 删除最低频条目后仍能正确淘汰
func TestLFU_EvictAfterDelete(t *testing.T) {
	c := NewLFU(2, 0)
	c.Set("a", nil)
	c.Set("b", nil)
	c.Get("b")
	c.Get("b")
	c.Delete("a")
	c.Set("c", nil)
	c.Get("c")
	c.Set("d", nil)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

// TestLFU_Expiry 过期条目视为未命中
func TestLFU_Expiry(t *testing.T) {
	now := time.Now()
	c := NewLFU(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", []byte("v"))
	_, ok := c.Get("k")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLFU_Stats(t *testing.T) {
	c := NewLFU(0, 0)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), nil)
	}
	c.Get("k0")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, 5, stats["entries"])
	assert.Equal(t, 1024, stats["capacity"])
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}
