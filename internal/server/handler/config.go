package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/config"
)

// HandleConfig 处理 GET /api/config
// 返回前端需要的应用信息和看板布局，时区以服务端生效值为准
func HandleConfig(c *gin.Context) {
	cfg := GetTickerConfig()
	if cfg == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "config not loaded"})
		return
	}

	app := config.AppConfig{
		Title:             cfg.App.Title,
		RefreshIntervalMs: cfg.App.RefreshIntervalMs,
		Timezone:          GetTimezone(),
	}

	c.JSON(http.StatusOK, gin.H{
		"app":       app,
		"dashboard": cfg.Dashboard,
	})
}
