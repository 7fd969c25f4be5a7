package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache 带过期时间的本地 LRU 缓存
type Cache[V any] struct {
	lru *lru.Cache[string, cacheItem[V]]
	ttl time.Duration
	now func() time.Time
}

// NewCache size 为容量，ttl 为每个条目的有效期
func NewCache[V any](size int, ttl time.Duration) (*Cache[V], error) {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: l, ttl: ttl, now: time.Now}, nil
}

func (c *Cache[V]) Set(key string, value V) {
	c.lru.Add(key, cacheItem[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Get 不存在或已过期时返回 false
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	item, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(item.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}
	return item.value, true
}

func (c *Cache[V]) Delete(key string) {
	c.lru.Remove(key)
}
