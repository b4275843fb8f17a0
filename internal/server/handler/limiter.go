package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
)

// HandleLimiterStatus 处理 GET /api/limiter
// 返回自身 API 限流器的当前参数和上游冷却状态，供排查大屏轮询异常
func HandleLimiterStatus(c *gin.Context) {
	rl := GetRateLimiter()
	if rl == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not initialized"})
		return
	}

	upstream := gin.H{"active": false}
	if client := GetClient(); client != nil {
		ctx := c.Request.Context()
		if client.RateLimited(ctx) {
			upstream["active"] = true
			upstream["until"] = client.RateLimitedUntil(ctx).UnixMilli()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"rateLimiter":      rl.Stats(),
		"upstreamCooldown": upstream,
	})
}

// limiterUpdateRequest 限流参数更新请求体
type limiterUpdateRequest struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// HandleLimiterUpdate 处理 POST /api/limiter
// 运行时调整限流参数，不落盘，重启后恢复为环境变量配置
func HandleLimiterUpdate(c *gin.Context) {
	rl := GetRateLimiter()
	if rl == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not initialized"})
		return
	}

	var req limiterUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.QPS <= 0 || req.Burst <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qps and burst must be positive"})
		return
	}

	rl.SetRate(req.QPS, req.Burst)
	logger.Info("更新限流参数",
		logger.Float64("qps", req.QPS),
		logger.Int("burst", req.Burst))

	c.JSON(http.StatusOK, gin.H{"rateLimiter": rl.Stats()})
}
