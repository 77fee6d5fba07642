// Package cache 提供提示词查询缓存及其失效
package cache

import (
	"container/list"
	"sync"
	"time"
)

// lfuNode LFU 缓存中的一个节点
type lfuNode struct {
	key       string
	value     []byte
	frequency int
	timestamp time.Time // 最后访问时间，频率相同时按 FIFO 淘汰
	expiresAt time.Time
}

// LFU 按访问频率淘汰的内存缓存
type LFU struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu         sync.Mutex
	minFreq    int
	keyToNode  map[string]*lfuNode
	freqToList map[int]*list.List
	nodeToElem map[*lfuNode]*list.Element
	hits       int64
	misses     int64
}

// NewLFU 创建 LFU 缓存
// capacity: 最大条目数，<= 0 时为 1024
// ttl: 条目有效期，<= 0 表示不过期
func NewLFU(capacity int, ttl time.Duration) *LFU {
	if capacity <= 0 {
		capacity = 1024
	}
	return &LFU{
		capacity:   capacity,
		ttl:        ttl,
		now:        time.Now,
		keyToNode:  make(map[string]*lfuNode),
		freqToList: make(map[int]*list.List),
		nodeToElem: make(map[*lfuNode]*list.Element),
	}
}

// Get 读取条目，命中时增加访问频率
func (c *LFU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.keyToNode[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !node.expiresAt.IsZero() && c.now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.keyToNode, key)
		c.misses++
		return nil, false
	}
	c.hits++
	c.increaseFrequency(node)
	return node.value, true
}

// Set 写入条目，已存在时覆盖值并增加频率
func (c *LFU) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if node, ok := c.keyToNode[key]; ok {
		node.value = value
		node.expiresAt = expiresAt
		c.increaseFrequency(node)
		return
	}

	if len(c.keyToNode) >= c.capacity {
		c.evict()
	}

	node := &lfuNode{
		key:       key,
		value:     value,
		frequency: 1,
		timestamp: c.now(),
		expiresAt: expiresAt,
	}
	c.keyToNode[key] = node
	c.addToFreqList(node)
	c.minFreq = 1
}

// Delete 删除条目，返回是否存在
func (c *LFU) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.keyToNode[key]
	if !ok {
		return false
	}
	c.removeNode(node)
	delete(c.keyToNode, key)
	return true
}

// Clear 清空缓存
func (c *LFU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.keyToNode = make(map[string]*lfuNode)
	c.freqToList = make(map[int]*list.List)
	c.nodeToElem = make(map[*lfuNode]*list.Element)
	c.minFreq = 0
}

// Len 当前条目数
func (c *LFU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keyToNode)
}

// Stats 缓存统计
func (c *LFU) Stats() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	freqDistribution := make(map[int]int)
	for _, node := range c.keyToNode {
		freqDistribution[node.frequency]++
	}
	return map[string]any{
		"entries":                len(c.keyToNode),
		"capacity":               c.capacity,
		"min_frequency":          c.minFreq,
		"hits":                   c.hits,
		"misses":                 c.misses,
		"frequency_distribution": freqDistribution,
	}
}

func (c *LFU) increaseFrequency(node *lfuNode) {
	c.removeNode(node)

	node.frequency++
	node.timestamp = c.now()

	c.addToFreqList(node)

	if l := c.freqToList[c.minFreq]; l == nil || l.Len() == 0 {
		c.minFreq++
	}
}

func (c *LFU) addToFreqList(node *lfuNode) {
	freq := node.frequency
	if c.freqToList[freq] == nil {
		c.freqToList[freq] = list.New()
	}
	c.nodeToElem[node] = c.freqToList[freq].PushBack(node)
}

func (c *LFU) removeNode(node *lfuNode) {
	freq := node.frequency
	elem := c.nodeToElem[node]
	if elem == nil || c.freqToList[freq] == nil {
		return
	}
	c.freqToList[freq].Remove(elem)
	delete(c.nodeToElem, node)
	if c.freqToList[freq].Len() == 0 {
		delete(c.freqToList, freq)
	}
}

// evict 淘汰最小频率列表中最早的条目
func (c *LFU) evict() {
	l := c.freqToList[c.minFreq]
	if l == nil || l.Len() == 0 {
		// Delete 之后 minFreq 可能失效，重新找最小频率
		c.minFreq = 0
		for freq, fl := range c.freqToList {
			if fl.Len() > 0 && (c.minFreq == 0 || freq < c.minFreq) {
				c.minFreq = freq
			}
		}
		if l = c.freqToList[c.minFreq]; l == nil || l.Len() == 0 {
			return
		}
	}

	node := l.Front().Value.(*lfuNode)
	c.removeNode(node)
	delete(c.keyToNode, node.key)
}
