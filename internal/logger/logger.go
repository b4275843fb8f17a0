package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field 日志字段，直接复用 zap 的字段类型
type Field = zap.Field

var (
	log     *zap.Logger
	logOnce sync.Once
)

// 字段构造函数
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Err      = zap.Error
	Any      = zap.Any
	Time     = zap.Time
	Duration = zap.Duration
)

// Init 初始化全局日志器（可重复调用，只生效一次）
// 日志级别通过环境变量 LOG_LEVEL 控制：debug/info/warn/error，默认 info
func Init() {
	logOnce.Do(func() {
		level := zapcore.InfoLevel
		switch os.Getenv("LOG_LEVEL") {
		case "debug":
			level = zapcore.DebugLevel
		case "warn":
			level = zapcore.WarnLevel
		case "error":
			level = zapcore.ErrorLevel
		}

		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		l, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// 构建失败时退回无操作日志器，避免 nil 解引用
			l = zap.NewNop()
		}
		log = l
	})
}

func get() *zap.Logger {
	if log == nil {
		Init()
	}
	return log
}

// Debug 输出调试日志
func Debug(msg string, fields ...Field) {
	get().Debug(msg, fields...)
}

// Info 输出信息日志
func Info(msg string, fields ...Field) {
	get().Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...Field) {
	get().Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...Field) {
	get().Error(msg, fields...)
}

// Fatal 输出致命错误日志并退出进程
func Fatal(msg string, fields ...Field) {
	get().Fatal(msg, fields...)
}

// Sync 刷新缓冲的日志
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
