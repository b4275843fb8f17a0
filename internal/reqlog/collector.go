package reqlog

import (
	"database/sql"
	"sync"
	"time"
)

const (
	workerCount = 3    // 写入 worker 数量
	queueSize   = 1000 // 队列大小
)

// Collector 上游请求日志收集器
// 写入走异步队列，队列满时直接丢弃，绝不阻塞取数路径
type Collector struct {
	db      *sql.DB
	queue   chan FetchRecord
	closeMu sync.Mutex
	closed  bool
}

// NewCollector 创建收集器并启动写入 worker
func NewCollector(db *sql.DB) *Collector {
	c := &Collector{
		db:    db,
		queue: make(chan FetchRecord, queueSize),
	}
	for i := 0; i < workerCount; i++ {
		go c.worker()
	}
	return c
}

// Record 记录一次上游请求
func (c *Collector) Record(r FetchRecord) {
	if c == nil {
		return
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	select {
	case c.queue <- r:
	default:
		// 队列满，丢弃
	}
	c.closeMu.Unlock()
}

// Close 停止收集，队列里剩余的记录由 worker 写完
func (c *Collector) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

// worker 处理写入
func (c *Collector) worker() {
	for r := range c.queue {
		if c.db != nil {
			persistRecordToDB(c.db, r)
		}
	}
}
