package reqlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
)

var (
	logDB     *sql.DB
	logDBOnce sync.Once
	logDBErr  error
)

const logSchema = `
CREATE TABLE IF NOT EXISTS fetch_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME,
    source TEXT,
    endpoint TEXT,
    method TEXT,
    status_code INTEGER,
    latency_ms INTEGER,
    attempts INTEGER,
    items INTEGER,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fetch_logs_timestamp ON fetch_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_fetch_logs_source ON fetch_logs(source);
`

// InitLogDB 初始化请求日志数据库
func InitLogDB(dbPath string) error {
	logDBOnce.Do(func() {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logDBErr = err
			return
		}

		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			logDBErr = err
			return
		}

		// 写入量不大，小连接池即可
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)

		if _, err := db.Exec(logSchema); err != nil {
			logDBErr = err
			db.Close()
			return
		}

		logDB = db
		logger.Info("请求日志数据库初始化完成", logger.String("path", dbPath))
	})
	return logDBErr
}

// GetLogDB 获取日志数据库连接
func GetLogDB() *sql.DB {
	return logDB
}

// CloseLogDB 关闭日志数据库
func CloseLogDB() {
	if logDB != nil {
		logDB.Close()
	}
}

// persistRecordToDB 持久化记录
func persistRecordToDB(db *sql.DB, r FetchRecord) {
	const insertSQL = `
		INSERT INTO fetch_logs (
			timestamp, source, endpoint, method, status_code,
			latency_ms, attempts, items, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(insertSQL,
		r.Timestamp.Format(time.RFC3339), r.Source, r.Endpoint, r.Method, r.StatusCode,
		r.LatencyMs, r.Attempts, r.Items, r.Error,
	)
	if err != nil {
		logger.Error("写入请求日志失败", logger.Err(err))
	}
}

// === 查询 ===

// QueryParams 日志查询参数
type QueryParams struct {
	Page     int
	PageSize int
	Source   string
	DateFrom string // yyyy-MM-dd
	DateTo   string
}

// QueryResult 日志查询结果
type QueryResult struct {
	Total   int64       `json:"total"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	Records []LogRecord `json:"records"`
}

// LogRecord 查询返回的单条记录
type LogRecord struct {
	ID         int64  `json:"id"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`
	LatencyMs  int64  `json:"latency_ms"`
	Attempts   int    `json:"attempts"`
	Items      int    `json:"items"`
	Error      string `json:"error,omitempty"`
}

// QueryLogs 按条件分页查询日志
func QueryLogs(db *sql.DB, params QueryParams) (*QueryResult, error) {
	if db == nil {
		return nil, fmt.Errorf("日志数据库未初始化")
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 100
	}

	where := "1=1"
	args := []any{}

	if params.Source != "" {
		where += " AND source = ?"
		args = append(args, params.Source)
	}
	if params.DateFrom != "" {
		where += " AND timestamp >= ?"
		args = append(args, params.DateFrom+"T00:00:00")
	}
	if params.DateTo != "" {
		where += " AND timestamp <= ?"
		args = append(args, params.DateTo+"T23:59:59")
	}

	var total int64
	if err := db.QueryRow("SELECT COUNT(*) FROM fetch_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	offset := (params.Page - 1) * params.PageSize
	pages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))

	querySQL := `SELECT id, timestamp, source, endpoint, method, status_code,
		latency_ms, attempts, items, error
		FROM fetch_logs WHERE ` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := db.Query(querySQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]LogRecord, 0, params.PageSize)
	for rows.Next() {
		var rec LogRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Source, &rec.Endpoint, &rec.Method,
			&rec.StatusCode, &rec.LatencyMs, &rec.Attempts, &rec.Items, &rec.Error); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Total:   total,
		Page:    params.Page,
		Pages:   pages,
		Records: records,
	}, nil
}

// SourceSummary 单个数据源的汇总
type SourceSummary struct {
	Source       string  `json:"source"`
	Requests     int64   `json:"requests"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Summarize 最近 since 时间内按数据源汇总请求情况
func Summarize(db *sql.DB, since time.Time) ([]SourceSummary, error) {
	if db == nil {
		return nil, fmt.Errorf("日志数据库未初始化")
	}

	rows, err := db.Query(`SELECT source,
		COUNT(*),
		SUM(CASE WHEN error != '' THEN 1 ELSE 0 END),
		AVG(latency_ms)
		FROM fetch_logs WHERE timestamp >= ? GROUP BY source ORDER BY source`,
		since.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]SourceSummary, 0, 4)
	for rows.Next() {
		var s SourceSummary
		var avg sql.NullFloat64
		if err := rows.Scan(&s.Source, &s.Requests, &s.Errors, &avg); err != nil {
			return nil, err
		}
		s.AvgLatencyMs = avg.Float64
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
