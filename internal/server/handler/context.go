package handler

import (
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cache"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/config"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cursor"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/service"
)

// Context 保存 handler 需要的依赖
type Context struct {
	Client      *cursor.Client
	Cache       *cache.AsyncCache
	Ticker      *config.TickerConfig
	Timezone    string
	RateLimiter *service.RateLimiter
}

var globalCtx *Context

// InitContext 初始化全局 handler context
func InitContext(ctx *Context) {
	globalCtx = ctx
}

// GetClient 获取上游客户端
func GetClient() *cursor.Client {
	if globalCtx == nil {
		return nil
	}
	return globalCtx.Client
}

// GetCache 获取响应缓存
func GetCache() *cache.AsyncCache {
	if globalCtx == nil {
		return nil
	}
	return globalCtx.Cache
}

// GetTickerConfig 获取看板配置
func GetTickerConfig() *config.TickerConfig {
	if globalCtx == nil {
		return nil
	}
	return globalCtx.Ticker
}

// GetTimezone 获取生效时区
func GetTimezone() string {
	if globalCtx == nil {
		return "UTC"
	}
	return globalCtx.Timezone
}

// GetRateLimiter 获取限流器
func GetRateLimiter() *service.RateLimiter {
	if globalCtx == nil {
		return nil
	}
	return globalCtx.RateLimiter
}
