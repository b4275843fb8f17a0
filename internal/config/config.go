package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Env 环境变量配置
type Env struct {
	CursorAPIKey string // CURSOR_API_KEY，必填
	Port         string // PORT，默认 4000
	Timezone     string // TICKER_TIMEZONE，优先级高于配置文件
	BaseURL      string // CURSOR_API_BASE_URL，默认官方地址
}

// 上游客户端默认值（可通过环境变量覆盖）
var (
	// ClientTimeoutMs 单次请求超时（毫秒）
	ClientTimeoutMs = getEnvIntWithDefault("CURSOR_TIMEOUT_MS", 30000)
	// ClientMaxRetries 最大重试次数
	ClientMaxRetries = getEnvIntWithDefault("CURSOR_MAX_RETRIES", 3)
	// ClientRetryBaseDelayMs 指数退避基准延迟（毫秒）
	ClientRetryBaseDelayMs = getEnvIntWithDefault("CURSOR_RETRY_BASE_DELAY_MS", 1000)
)

// 服务自身 API 的限流配置（可通过环境变量覆盖）
var (
	// RateLimitQPS 每秒允许的请求数
	RateLimitQPS = float64(getEnvIntWithDefault("TICKER_RATE_LIMIT_QPS", 20))
	// RateLimitBurst 突发容量
	RateLimitBurst = getEnvIntWithDefault("TICKER_RATE_LIMIT_BURST", 40)
)

// LoadEnv 读取并校验环境变量
func LoadEnv() (*Env, error) {
	apiKey := os.Getenv("CURSOR_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("CURSOR_API_KEY 未设置")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	baseURL := os.Getenv("CURSOR_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.cursor.com"
	}

	return &Env{
		CursorAPIKey: apiKey,
		Port:         port,
		Timezone:     os.Getenv("TICKER_TIMEZONE"),
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// AppConfig 应用级配置
type AppConfig struct {
	Title             string `json:"title"`
	RefreshIntervalMs int    `json:"refreshIntervalMs"`
	Timezone          string `json:"timezone"`
}

// PrivacyConfig 隐私配置
// emailMode 控制榜单里邮箱的展示方式：
//   - full:          完整邮箱 (john.doe@example.com)
//   - masked:        打码 (j***@example.com)
//   - firstNameOnly: 只取名字 (John)
//   - initials:      首字母 (JD)
type PrivacyConfig struct {
	EmailMode string `json:"emailMode"`
}

// UsageEventsConfig 用量事件数据源配置
type UsageEventsConfig struct {
	PollIntervalMs     int `json:"pollIntervalMs"`
	PageSize           int `json:"pageSize"`
	MaxPages           int `json:"maxPages"`
	ShortWindowMinutes int `json:"shortWindowMinutes"`
	LongWindowMinutes  int `json:"longWindowMinutes"`
}

// DailyUsageConfig 日用量数据源配置
type DailyUsageConfig struct {
	PollIntervalMs int `json:"pollIntervalMs"`
	LookbackDays   int `json:"lookbackDays"`
}

// SpendConfig 消费数据源配置
type SpendConfig struct {
	PollIntervalMs int `json:"pollIntervalMs"`
	PageSize       int `json:"pageSize"`
}

// MembersConfig 成员数据源配置
type MembersConfig struct {
	PollIntervalMs int `json:"pollIntervalMs"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	MaxEntries int `json:"maxEntries"`
}

// DataConfig 各数据源配置
type DataConfig struct {
	UsageEvents UsageEventsConfig `json:"usageEvents"`
	DailyUsage  DailyUsageConfig  `json:"dailyUsage"`
	Spend       SpendConfig       `json:"spend"`
	Members     MembersConfig     `json:"members"`
	Cache       CacheConfig       `json:"cache"`
}

// Widget 看板组件声明
// 除必填字段外，组件特有的配置键原样保留并透传给前端
type Widget struct {
	ID      string
	Type    string
	Label   string
	ColSpan int
	RowSpan int

	raw map[string]json.RawMessage
}

// 允许的组件类型
var widgetTypes = map[string]bool{
	"bigNumber": true,
	"gauge":     true,
	"barList":   true,
	"sparkline": true,
	"podium":    true,
}

// UnmarshalJSON 解析已知字段，同时保留未知键
func (w *Widget) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	w.raw = raw

	known := struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Label   string `json:"label"`
		ColSpan int    `json:"colSpan"`
		RowSpan int    `json:"rowSpan"`
	}{}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	w.ID = known.ID
	w.Type = known.Type
	w.Label = known.Label
	w.ColSpan = known.ColSpan
	w.RowSpan = known.RowSpan
	return nil
}

// MarshalJSON 原样输出，包括透传键
func (w Widget) MarshalJSON() ([]byte, error) {
	if w.raw != nil {
		return json.Marshal(w.raw)
	}
	return json.Marshal(map[string]any{
		"id":      w.ID,
		"type":    w.Type,
		"label":   w.Label,
		"colSpan": w.ColSpan,
		"rowSpan": w.RowSpan,
	})
}

// DashboardConfig 看板布局配置
type DashboardConfig struct {
	Columns int      `json:"columns"`
	GapPx   int      `json:"gapPx"`
	Widgets []Widget `json:"widgets"`
}

// TickerConfig ticker.config.json 的完整结构
type TickerConfig struct {
	App       AppConfig       `json:"app"`
	Privacy   PrivacyConfig   `json:"privacy"`
	Data      DataConfig      `json:"data"`
	Dashboard DashboardConfig `json:"dashboard"`
}

// applyDefaults 填充缺省值
func (c *TickerConfig) applyDefaults() {
	if c.App.Title == "" {
		c.App.Title = "Cursor Live Ticker"
	}
	if c.App.RefreshIntervalMs <= 0 {
		c.App.RefreshIntervalMs = 5000
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "UTC"
	}
	if c.Privacy.EmailMode == "" {
		c.Privacy.EmailMode = "masked"
	}
	if c.Data.UsageEvents.PollIntervalMs <= 0 {
		c.Data.UsageEvents.PollIntervalMs = 60000
	}
	if c.Data.UsageEvents.PageSize <= 0 {
		c.Data.UsageEvents.PageSize = 500
	}
	if c.Data.UsageEvents.MaxPages <= 0 {
		c.Data.UsageEvents.MaxPages = 40
	}
	if c.Data.UsageEvents.ShortWindowMinutes <= 0 {
		c.Data.UsageEvents.ShortWindowMinutes = 15
	}
	if c.Data.UsageEvents.LongWindowMinutes <= 0 {
		c.Data.UsageEvents.LongWindowMinutes = 60
	}
	if c.Data.DailyUsage.PollIntervalMs <= 0 {
		c.Data.DailyUsage.PollIntervalMs = 300000
	}
	if c.Data.DailyUsage.LookbackDays <= 0 {
		c.Data.DailyUsage.LookbackDays = 7
	}
	if c.Data.Spend.PollIntervalMs <= 0 {
		c.Data.Spend.PollIntervalMs = 300000
	}
	if c.Data.Spend.PageSize <= 0 {
		c.Data.Spend.PageSize = 100
	}
	if c.Data.Members.PollIntervalMs <= 0 {
		c.Data.Members.PollIntervalMs = 3600000
	}
	if c.Data.Cache.MaxEntries <= 0 {
		c.Data.Cache.MaxEntries = 100
	}
	if c.Dashboard.Columns <= 0 {
		c.Dashboard.Columns = 12
	}
	if c.Dashboard.GapPx <= 0 {
		c.Dashboard.GapPx = 18
	}
}

// validate 校验配置，收集全部问题后统一报错
func (c *TickerConfig) validate() error {
	var issues []string

	switch c.Privacy.EmailMode {
	case "full", "masked", "firstNameOnly", "initials":
	default:
		issues = append(issues, fmt.Sprintf("privacy.emailMode: 非法值 %q", c.Privacy.EmailMode))
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		issues = append(issues, fmt.Sprintf("app.timezone: 无法识别的时区 %q", c.App.Timezone))
	}

	for i, w := range c.Dashboard.Widgets {
		if w.ID == "" {
			issues = append(issues, fmt.Sprintf("dashboard.widgets[%d].id: 不能为空", i))
		}
		if !widgetTypes[w.Type] {
			issues = append(issues, fmt.Sprintf("dashboard.widgets[%d].type: 非法值 %q", i, w.Type))
		}
		if w.Label == "" {
			issues = append(issues, fmt.Sprintf("dashboard.widgets[%d].label: 不能为空", i))
		}
		if w.ColSpan <= 0 {
			issues = append(issues, fmt.Sprintf("dashboard.widgets[%d].colSpan: 必须为正整数", i))
		}
		if w.RowSpan <= 0 {
			issues = append(issues, fmt.Sprintf("dashboard.widgets[%d].rowSpan: 必须为正整数", i))
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("ticker.config.json 配置非法: %s", strings.Join(issues, "; "))
	}
	return nil
}

// resolveConfigFile 在当前目录和上级目录查找配置文件
func resolveConfigFile(filename string) (string, error) {
	if p := os.Getenv("TICKER_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("TICKER_CONFIG 指定的文件不存在: %s", p)
	}

	candidates := []string{filename, filepath.Join("..", filename)}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("找不到 %s，已查找: %s", filename, strings.Join(candidates, ", "))
}

// LoadTickerConfig 加载并校验 ticker.config.json
func LoadTickerConfig() (*TickerConfig, error) {
	file, err := resolveConfigFile("ticker.config.json")
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", file, err)
	}

	var cfg TickerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", file, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// getEnvIntWithDefault 获取整数类型环境变量（带默认值）
func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
