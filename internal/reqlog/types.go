package reqlog

import "time"

// FetchRecord 单次上游请求的结果记录
type FetchRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`   // usageEvents / dailyUsage / spend / members
	Endpoint   string    `json:"endpoint"` // 上游路径
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"` // 最后一次尝试的状态码，网络错误时为 0
	LatencyMs  int64     `json:"latency_ms"`  // 含重试的总耗时
	Attempts   int       `json:"attempts"`    // 实际尝试次数
	Items      int       `json:"items"`       // 本次拿到的行/事件数
	Error      string    `json:"error,omitempty"`
}
