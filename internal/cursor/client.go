package cursor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cache"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/reqlog"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

const (
	// DefaultBaseURL Cursor Admin API 地址
	DefaultBaseURL = "https://api.cursor.com"
	// DefaultTimeout 单次请求超时
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries 最大重试次数
	DefaultMaxRetries = 3
	// DefaultRetryBaseDelay 指数退避基准延迟
	DefaultRetryBaseDelay = time.Second

	// 错误响应体截断长度
	maxErrorBodyLen = 400
)

// Options 客户端配置
type Options struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	Cooldown       *cache.CooldownTracker // 限流冷却跟踪，nil 时内部创建
	Recorder       *reqlog.Collector      // 请求日志收集器，可以为 nil
}

// Client Cursor Admin API 客户端
// 认证用 HTTP Basic（API key 作为用户名，密码为空），
// 超时、网络错误、非 2xx、429 都走同一条重试阶梯，
// 429 优先按服务端 Retry-After 等待并记录冷却状态
type Client struct {
	baseURL        string
	authHeader     string
	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	cooldown       *cache.CooldownTracker
	recorder       *reqlog.Collector
}

// New 创建客户端
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if opts.Cooldown == nil {
		opts.Cooldown = cache.NewCooldownTracker(nil)
	}

	token := base64.StdEncoding.EncodeToString([]byte(opts.APIKey + ":"))

	return &Client{
		baseURL:        opts.BaseURL,
		authHeader:     "Basic " + token,
		timeout:        opts.Timeout,
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		httpClient:     &http.Client{},
		cooldown:       opts.Cooldown,
		recorder:       opts.Recorder,
	}
}

// RateLimitedUntil 当前限流冷却截止时间；不在冷却中时返回零值
func (c *Client) RateLimitedUntil(ctx context.Context) time.Time {
	return c.cooldown.Until(ctx)
}

// RateLimited 当前是否处于限流冷却中
func (c *Client) RateLimited(ctx context.Context) bool {
	return c.cooldown.Active(ctx)
}

// callResult 一次请求（含重试）的执行概况，用于落请求日志
type callResult struct {
	status   int
	attempts int
	latency  time.Duration
}

// record 写一条请求日志
func (c *Client) record(source, method, path string, cr callResult, items int, err error) {
	if c.recorder == nil {
		return
	}
	rec := reqlog.FetchRecord{
		Source:     source,
		Endpoint:   path,
		Method:     method,
		StatusCode: cr.status,
		LatencyMs:  cr.latency.Milliseconds(),
		Attempts:   cr.attempts,
		Items:      items,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.recorder.Record(rec)
}

// parseRetryAfter 解析 Retry-After 头：整数秒或 HTTP 日期
func parseRetryAfter(header string) (time.Duration, bool) {
	if header == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second, true
		}
		return 0, false
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// sleep 可被调用方 ctx 打断的等待
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoff 第 attempt 次失败后的退避时长（base * 2^attempt）
func (c *Client) backoff(attempt int) time.Duration {
	return c.retryBaseDelay * time.Duration(1<<attempt)
}

// requestJSON 发送一次带重试的 JSON 请求
//
// 重试阶梯覆盖：单次超时、网络错误、429、其他非 2xx。
// 429 时优先用服务端 Retry-After 计算等待时长并更新冷却状态；
// 重试耗尽后按最后一种失败分类抛出 RateLimitError / TimeoutError / UpstreamError
func (c *Client) requestJSON(ctx context.Context, method, path string, payload any, out any) (callResult, error) {
	url := c.baseURL + path
	start := time.Now()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return callResult{latency: time.Since(start)}, fmt.Errorf("序列化请求体失败: %w", err)
		}
	}

	cr := callResult{}
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		cr.attempts = attempt + 1

		err := func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			var reader io.Reader
			if body != nil {
				reader = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", c.authHeader)
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				// 单次超时归类为 TimeoutError，其余网络错误原样进入重试
				if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
					return &types.TimeoutError{
						Message: fmt.Sprintf("Request to %s timed out after %dms", path, c.timeout.Milliseconds()),
					}
				}
				return err
			}
			defer resp.Body.Close()
			cr.status = resp.StatusCode

			if resp.StatusCode == http.StatusTooManyRequests {
				retryAfter, hasRetryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
				delay := retryAfter
				if !hasRetryAfter {
					delay = c.backoff(attempt)
				}
				// 冷却状态在重试期间也要更新，供前端提示
				c.cooldown.Set(ctx, time.Now().Add(delay))
				io.Copy(io.Discard, resp.Body)
				return &types.RateLimitError{
					Message:    fmt.Sprintf("Rate limited after %d retries on %s", c.maxRetries, path),
					RetryAfter: retryAfter,
				}
			}

			// 任何成功响应都解除冷却
			c.cooldown.Clear(ctx)

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen+1))
				if len(snippet) > maxErrorBodyLen {
					snippet = append(snippet[:maxErrorBodyLen], "…"...)
				}
				return &types.UpstreamError{
					Method:     method,
					Path:       path,
					StatusCode: resp.StatusCode,
					Body:       string(snippet),
				}
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode %s %s response: %w", method, path, err)
			}
			return nil
		}()

		if err == nil {
			cr.latency = time.Since(start)
			return cr, nil
		}

		// 调用方自己取消时立即放弃
		if ctx.Err() != nil {
			cr.latency = time.Since(start)
			return cr, ctx.Err()
		}

		lastErr = err

		if attempt >= c.maxRetries {
			break
		}

		// 429 用 Retry-After（已折算进 RetryAfter 或退避），其余用指数退避
		delay := c.backoff(attempt)
		var rle *types.RateLimitError
		if errors.As(err, &rle) && rle.RetryAfter > 0 {
			delay = rle.RetryAfter
		}

		logger.Warn("上游请求失败，准备重试",
			logger.String("path", path),
			logger.Int("attempt", attempt+1),
			logger.Int("max_retries", c.maxRetries),
			logger.Duration("delay", delay),
			logger.Err(err))

		if err := sleep(ctx, delay); err != nil {
			cr.latency = time.Since(start)
			return cr, err
		}
	}

	cr.latency = time.Since(start)
	return cr, lastErr
}

// GetMembers 拉取团队成员列表
func (c *Client) GetMembers(ctx context.Context) (*types.MembersResponse, error) {
	var resp types.MembersResponse
	cr, err := c.requestJSON(ctx, http.MethodGet, "/teams/members", nil, &resp)
	c.record("members", http.MethodGet, "/teams/members", cr, len(resp.TeamMembers), err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetDailyUsageData 拉取指定区间的日用量数据
func (c *Client) GetDailyUsageData(ctx context.Context, startDate, endDate int64) (*types.DailyUsageResponse, error) {
	var resp types.DailyUsageResponse
	payload := map[string]int64{"startDate": startDate, "endDate": endDate}
	cr, err := c.requestJSON(ctx, http.MethodPost, "/teams/daily-usage-data", payload, &resp)
	c.record("dailyUsage", http.MethodPost, "/teams/daily-usage-data", cr, len(resp.Data), err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSpend 拉取一页消费数据（按金额降序）
func (c *Client) GetSpend(ctx context.Context, page, pageSize int) (*types.SpendResponse, error) {
	var resp types.SpendResponse
	payload := map[string]any{
		"page":          page,
		"pageSize":      pageSize,
		"sortBy":        "amount",
		"sortDirection": "desc",
	}
	cr, err := c.requestJSON(ctx, http.MethodPost, "/teams/spend", payload, &resp)
	c.record("spend", http.MethodPost, "/teams/spend", cr, len(resp.TeamMemberSpend), err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFilteredUsageEvents 拉取一页用量事件
func (c *Client) GetFilteredUsageEvents(ctx context.Context, startDate, endDate int64, page, pageSize int) (*types.UsageEventsResponse, error) {
	var resp types.UsageEventsResponse
	payload := map[string]any{
		"startDate": startDate,
		"endDate":   endDate,
		"page":      page,
		"pageSize":  pageSize,
	}
	cr, err := c.requestJSON(ctx, http.MethodPost, "/teams/filtered-usage-events", payload, &resp)
	c.record("usageEvents", http.MethodPost, "/teams/filtered-usage-events", cr, len(resp.Events()), err)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
