package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cache"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/config"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cursor"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/reqlog"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/server"
)

func main() {
	// 加载 .env 文件（可选，文件不存在时静默忽略）
	_ = godotenv.Load()

	logger.Init()
	defer logger.Sync()

	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载环境变量失败: %v\n", err)
		os.Exit(1)
	}

	ticker, err := config.LoadTickerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 时区优先级：环境变量 > 配置文件 > UTC
	timezone := env.Timezone
	if timezone == "" {
		timezone = ticker.App.Timezone
	}
	if timezone == "" {
		timezone = "UTC"
	}

	// 初始化拉取日志数据库
	logDBPath := os.Getenv("TICKER_LOG_DB_PATH")
	if logDBPath == "" {
		logDBPath = "./data/fetch_logs.db"
	}
	if err := reqlog.InitLogDB(logDBPath); err != nil {
		logger.Warn("初始化拉取日志数据库失败，诊断接口不可用", logger.Err(err))
	}
	defer reqlog.CloseLogDB()

	var recorder *reqlog.Collector
	if db := reqlog.GetLogDB(); db != nil {
		recorder = reqlog.NewCollector(db)
		defer recorder.Close()
	}

	// Redis 可选，用于多副本共享限流冷却状态
	cache.InitDefault()
	cooldown := cache.NewCooldownTracker(cache.GetDefault())

	client := cursor.New(cursor.Options{
		APIKey:         env.CursorAPIKey,
		BaseURL:        env.BaseURL,
		Timeout:        time.Duration(config.ClientTimeoutMs) * time.Millisecond,
		MaxRetries:     config.ClientMaxRetries,
		RetryBaseDelay: time.Duration(config.ClientRetryBaseDelayMs) * time.Millisecond,
		Cooldown:       cooldown,
		Recorder:       recorder,
	})

	logger.Info("cursor-live-ticker 启动中...",
		logger.String("timezone", timezone),
		logger.String("base_url", env.BaseURL))

	server.Start(&server.Deps{
		Env:      env,
		Ticker:   ticker,
		Timezone: timezone,
		Client:   client,
		Cache:    cache.NewAsyncCache(ticker.Data.Cache.MaxEntries),
	})
}
