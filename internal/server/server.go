package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cache"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/config"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cursor"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/reqlog"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/server/handler"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/service"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

var startTime = time.Now()

// 静态资源目录，构建产物放这里时自动启用大屏页面
const staticDir = "./static"

// Deps 服务器依赖
type Deps struct {
	Env      *config.Env
	Ticker   *config.TickerConfig
	Timezone string
	Client   *cursor.Client
	Cache    *cache.AsyncCache
}

// Start 启动服务器
func Start(deps *Deps) {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)

	rateLimiter := service.NewRateLimiter(config.RateLimitQPS, config.RateLimitBurst)

	handler.InitContext(&handler.Context{
		Client:      deps.Client,
		Cache:       deps.Cache,
		Ticker:      deps.Ticker,
		Timezone:    deps.Timezone,
		RateLimiter: rateLimiter,
	})

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(rateLimiter.Middleware())
	r.Use(accessLogMiddleware())

	registerAPIRoutes(r)
	registerStatic(r)

	logger.Info("启动服务器",
		logger.String("port", deps.Env.Port),
		logger.String("timezone", deps.Timezone))

	server := &http.Server{
		Addr:    ":" + deps.Env.Port,
		Handler: r,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("启动服务器失败", logger.Err(err))
		os.Exit(1)
	}
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(r *gin.Engine) {
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ok":     true,
			"now":    time.Now().UnixMilli(),
			"uptime": int64(time.Since(startTime).Seconds()),
		})
	})

	r.GET("/api/config", handler.HandleConfig)
	r.GET("/api/stats", handler.HandleStats)

	// 限流器状态查看与运行时调整
	r.GET("/api/limiter", handler.HandleLimiterStatus)
	r.POST("/api/limiter", handler.HandleLimiterUpdate)

	// 拉取诊断
	r.GET("/api/fetch-log", reqlog.HandleQueryLogs)
	r.GET("/api/fetch-log/summary", reqlog.HandleSummary)
}

// registerStatic 挂载大屏静态页面（只在构建产物存在时）
func registerStatic(r *gin.Engine) {
	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		logger.Info("未找到静态页面，只提供 API", logger.String("dir", staticDir))
		return
	}

	r.Static("/assets", filepath.Join(staticDir, "assets"))
	r.StaticFile("/", index)

	// SPA 路由兜底：未知路径回 index.html，API 路径回 404
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, types.NewAPIError(
				types.ErrorTypeFromStatus(http.StatusNotFound),
				"not found",
				types.ErrorCodeFromStatus(http.StatusNotFound)))
			return
		}
		c.File(index)
	})
}
