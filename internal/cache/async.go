package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultMaxEntries 缓存条目数上限缺省值
const DefaultMaxEntries = 100

// Fetcher 缓存未命中时的取数函数
type Fetcher func(ctx context.Context) (any, error)

// inflightCall 一次进行中的取数调用
// 所有等待同一个 key 的调用方共享这一个结果
type inflightCall struct {
	done      chan struct{}
	value     any
	fetchedAt time.Time
	err       error
}

// entry 单个缓存条目
// 不变量：value 和 expiresAt 总是一起写入；同一 key 任意时刻至多一个 inflight
type entry struct {
	value     any
	fetchedAt time.Time
	expiresAt time.Time
	hasValue  bool
	inflight  *inflightCall
}

// AsyncCache 带请求合并的 TTL 缓存
// 同一 key 的并发 Get 只会触发一次取数，失败时条目整体删除，下次调用重新取
type AsyncCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
}

// NewAsyncCache 创建缓存，maxEntries <= 0 时取缺省上限
func NewAsyncCache(maxEntries int) *AsyncCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &AsyncCache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
	}
}

// Get 查询缓存，未命中时调用 fetcher 取数并写回
// 返回值为缓存值和它的取数时间
//
//   - 新鲜命中：直接返回，不触发取数
//   - 未命中且无 inflight：发起一次取数；成功写回，失败删除整个条目
//   - 未命中但已有 inflight：等待那次取数的结果，不重复取
//
// 取数在独立 goroutine 里执行，调用方放弃等待不会中止取数，
// 其他等待者仍能拿到结果
func (c *AsyncCache) Get(ctx context.Context, key string, ttl time.Duration, fetcher Fetcher) (any, time.Time, error) {
	c.mu.Lock()
	c.evictLocked(time.Now())

	e := c.entries[key]
	now := time.Now()

	// 新鲜命中
	if e != nil && e.hasValue && now.Before(e.expiresAt) {
		value, fetchedAt := e.value, e.fetchedAt
		c.mu.Unlock()
		return value, fetchedAt, nil
	}

	// 已有进行中的取数，挂到同一个调用上
	if e != nil && e.inflight != nil {
		call := e.inflight
		c.mu.Unlock()
		return c.await(ctx, call)
	}

	// 发起新的取数。inflight 标记必须在锁内发布，
	// 保证并发 Get 不会同时判定自己是第一个
	call := &inflightCall{done: make(chan struct{})}
	if e == nil {
		e = &entry{}
		c.entries[key] = e
	}
	e.inflight = call
	c.mu.Unlock()

	go c.fetch(key, ttl, call, fetcher)

	return c.await(ctx, call)
}

// fetch 执行取数并写回缓存
// 用独立的 context，调用方取消不影响取数本身（上游超时由客户端自己控制）
func (c *AsyncCache) fetch(key string, ttl time.Duration, call *inflightCall, fetcher Fetcher) {
	value, err := fetcher(context.Background())
	fetchedAt := time.Now()

	c.mu.Lock()
	if err != nil {
		// 整个条目删掉（而不是只清 inflight），下次调用从头再来
		delete(c.entries, key)
	} else {
		c.entries[key] = &entry{
			value:     value,
			fetchedAt: fetchedAt,
			expiresAt: fetchedAt.Add(ttl),
			hasValue:  true,
		}
	}
	c.mu.Unlock()

	call.value = value
	call.fetchedAt = fetchedAt
	call.err = err
	close(call.done)
}

// await 等待取数结果；调用方的 ctx 取消时提前返回，但不中止取数
func (c *AsyncCache) await(ctx context.Context, call *inflightCall) (any, time.Time, error) {
	select {
	case <-call.done:
		if call.err != nil {
			return nil, time.Time{}, call.err
		}
		return call.value, call.fetchedAt, nil
	case <-ctx.Done():
		return nil, time.Time{}, ctx.Err()
	}
}

// evictLocked 机会式淘汰，在每次 Get 开头执行（调用方必须持锁）
// 超过上限时先清已过期的条目，仍超限再按 fetchedAt 从旧到新删，
// 进行中的条目不淘汰
func (c *AsyncCache) evictLocked(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		return
	}

	for key, e := range c.entries {
		if e.inflight == nil && e.hasValue && !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type aged struct {
		key       string
		fetchedAt time.Time
	}
	candidates := make([]aged, 0, len(c.entries))
	for key, e := range c.entries {
		if e.inflight == nil {
			candidates = append(candidates, aged{key, e.fetchedAt})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].fetchedAt.Before(candidates[j].fetchedAt)
	})

	for _, cand := range candidates {
		if len(c.entries) <= c.maxEntries {
			break
		}
		delete(c.entries, cand.key)
	}
}

// Len 当前条目数
func (c *AsyncCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
