package cache

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
)

// defaultRedis 默认 Redis 实例
var defaultRedis *RedisCache

// RedisCache 可选的 Redis 连接
// 未配置 REDIS_URL 时处于禁用状态，所有依赖方需自行判断 Enabled()
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedis 创建 Redis 连接，url 为空时返回禁用实例
func NewRedis(url string) (*RedisCache, error) {
	if url == "" {
		return &RedisCache{enabled: false}, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{
			Addr:         url,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}
	}

	c := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("Redis 连接成功", logger.String("addr", opt.Addr))
	return &RedisCache{client: c, enabled: true}, nil
}

// Enabled 是否启用
func (r *RedisCache) Enabled() bool {
	return r != nil && r.enabled
}

// Client 获取客户端
func (r *RedisCache) Client() *redis.Client {
	return r.client
}

// Close 关闭连接
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InitDefault 按 REDIS_URL 初始化默认实例，连接失败时降级为禁用
func InitDefault() {
	url := os.Getenv("REDIS_URL")
	c, err := NewRedis(url)
	if err != nil {
		logger.Warn("Redis 连接失败，冷却状态仅保留在进程内", logger.Err(err))
		c = &RedisCache{enabled: false}
	}
	defaultRedis = c
}

// GetDefault 获取默认实例
func GetDefault() *RedisCache {
	if defaultRedis == nil {
		InitDefault()
	}
	return defaultRedis
}
