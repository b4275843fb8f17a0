package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// KeyCooldown 上游限流冷却的 Redis key
const KeyCooldown = "ticker:cooldown:cursor-api"

// CooldownTracker 上游限流冷却跟踪
// 进程内用原子时间戳，配置了 Redis 时再做一份镜像，
// 多副本部署时所有实例共享同一个供应商的限流窗口
type CooldownTracker struct {
	untilMs atomic.Int64
	rdb     *RedisCache
}

// NewCooldownTracker 创建跟踪器，rdb 可以为 nil 或禁用状态
func NewCooldownTracker(rdb *RedisCache) *CooldownTracker {
	return &CooldownTracker{rdb: rdb}
}

// Set 记录冷却截止时间（收到 429 时调用，重试中也会更新）
func (t *CooldownTracker) Set(ctx context.Context, until time.Time) {
	t.untilMs.Store(until.UnixMilli())

	if t.rdb.Enabled() {
		ttl := time.Until(until)
		if ttl > 0 {
			// 写失败只影响跨副本可见性，忽略
			_ = t.rdb.Client().Set(ctx, KeyCooldown, "1", ttl).Err()
		}
	}
}

// Clear 清除冷却状态（下一次成功请求时调用）
func (t *CooldownTracker) Clear(ctx context.Context) {
	t.untilMs.Store(0)

	if t.rdb.Enabled() {
		_ = t.rdb.Client().Del(ctx, KeyCooldown).Err()
	}
}

// Until 返回冷却截止时间；不在冷却中时返回零值
func (t *CooldownTracker) Until(ctx context.Context) time.Time {
	if ms := t.untilMs.Load(); ms > 0 {
		until := time.UnixMilli(ms)
		if time.Now().Before(until) {
			return until
		}
	}

	// 本地没有，再看其他副本是否撞上了限流
	if t.rdb.Enabled() {
		ttl, err := t.rdb.Client().PTTL(ctx, KeyCooldown).Result()
		if err == nil && ttl > 0 {
			return time.Now().Add(ttl)
		}
	}
	return time.Time{}
}

// Active 当前是否处于冷却中
func (t *CooldownTracker) Active(ctx context.Context) bool {
	return !t.Until(ctx).IsZero()
}
