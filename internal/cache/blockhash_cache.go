package cache

import (
	"sync"
	"time"
)

// BlockhashPoint 一条最新区块哈希记录
type BlockhashPoint struct {
	Blockhash string
	Slot      uint64
	UpdatedAt time.Time
}

// BlockhashCache 保存最新的 blockhash，由 gRPC 区块流或 RPC 轮询写入
type BlockhashCache struct {
	mu     sync.RWMutex
	latest BlockhashPoint
	maxAge time.Duration
	now    func() time.Time
}

func NewBlockhashCache(maxAge time.Duration) *BlockhashCache {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &BlockhashCache{maxAge: maxAge, now: time.Now}
}

// Update 只接受更高的 slot；slot 为 0 表示来源不带 slot（RPC），直接覆盖
func (c *BlockhashCache) Update(blockhash string, slot uint64) bool {
	if blockhash == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot != 0 && slot < c.latest.Slot {
		return false
	}
	c.latest = BlockhashPoint{Blockhash: blockhash, Slot: slot, UpdatedAt: c.now()}
	return true
}

// Get 返回未过期的 blockhash
func (c *BlockhashCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest.Blockhash == "" {
		return "", false
	}
	if c.now().Sub(c.latest.UpdatedAt) > c.maxAge {
		return "", false
	}
	return c.latest.Blockhash, true
}

// Latest 不做过期判断，用于观测
func (c *BlockhashCache) Latest() BlockhashPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
