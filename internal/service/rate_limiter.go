package service

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

// RateLimiter 本服务自身 API 的全局限流器
// 防止大屏轮询配置异常时把 /api/stats 打穿，进而拖垮上游配额
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter 创建限流器
// qps: 每秒允许的请求数
// burst: 突发容量
func NewRateLimiter(qps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// Middleware 返回 Gin 中间件
// 只限流数据类接口（/api/stats、/api/fetch-log），健康检查和配置不限流
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api/stats") && !strings.HasPrefix(path, "/api/fetch-log") {
			c.Next()
			return
		}

		if !rl.limiter.Allow() {
			reservation := rl.limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel() // 取消预约，不消耗令牌

			c.Header("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, types.NewAPIError(
				types.ErrorTypeFromStatus(http.StatusTooManyRequests),
				"too many requests, slow down the dashboard poll interval",
				types.ErrorCodeFromStatus(http.StatusTooManyRequests)))
			c.Abort()
			return
		}

		c.Next()
	}
}

// SetRate 动态调整限流速率
func (rl *RateLimiter) SetRate(qps float64, burst int) {
	rl.limiter.SetLimit(rate.Limit(qps))
	rl.limiter.SetBurst(burst)
}

// Stats 返回当前状态
func (rl *RateLimiter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"qps":       float64(rl.limiter.Limit()),
		"burst":     rl.limiter.Burst(),
		"available": rl.limiter.Tokens(),
	}
}
