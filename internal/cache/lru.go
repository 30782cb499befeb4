// Package cache provides plan.Cache implementations: an in-process LRU and a
// Redis-backed cache shared between instances.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"quickplan/internal/plan"
)

// LRU 是进程内的计划缓存，条目在 ttl 后过期。
type LRU struct {
	entries *expirable.LRU[string, plan.Plan]
}

// NewLRU 创建容量为 size 的缓存。
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1024
	}
	return &LRU{entries: expirable.NewLRU[string, plan.Plan](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, urlID string) (*plan.Plan, bool) {
	p, ok := c.entries.Get(urlID)
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *LRU) Set(_ context.Context, p *plan.Plan) {
	if p == nil {
		return
	}
	c.entries.Add(p.URLID, *p)
}

func (c *LRU) Delete(_ context.Context, urlID string) {
	c.entries.Remove(urlID)
}

// Len 返回当前条目数。
func (c *LRU) Len() int {
	return c.entries.Len()
}
