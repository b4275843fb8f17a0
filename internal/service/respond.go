package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

// StatusForUpstreamError 上游错误到 HTTP 状态码的映射
// 429 透传限流，超时归 504，其余一律 500
func StatusForUpstreamError(err error) int {
	var rle *types.RateLimitError
	if errors.As(err, &rle) {
		return http.StatusTooManyRequests
	}
	var te *types.TimeoutError
	if errors.As(err, &te) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// RespondUpstreamError 按上游错误分类返回 {"error": ...} 响应
// 429 时带上 Retry-After 头
func RespondUpstreamError(c *gin.Context, err error) {
	status := StatusForUpstreamError(err)

	var rle *types.RateLimitError
	if errors.As(err, &rle) && rle.RetryAfter > 0 {
		seconds := int(rle.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}

	logger.Error("数据拉取失败",
		logger.String("path", c.Request.URL.Path),
		logger.Int("status", status),
		logger.Err(err))

	c.JSON(status, gin.H{"error": err.Error()})
}
