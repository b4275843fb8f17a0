package cursor

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/cache"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

// newTestClient 指向测试服务器的快重试客户端
func newTestClient(serverURL string, maxRetries int) *Client {
	return New(Options{
		APIKey:         "key_test",
		BaseURL:        serverURL,
		Timeout:        2 * time.Second,
		MaxRetries:     maxRetries,
		RetryBaseDelay: 5 * time.Millisecond,
		Cooldown:       cache.NewCooldownTracker(nil),
	})
}

// TestClient_BasicAuth 测试 Basic 认证头格式
func TestClient_BasicAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"teamMembers":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	if _, err := c.GetMembers(context.Background()); err != nil {
		t.Fatalf("请求失败: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key_test:"))
	if gotAuth != want {
		t.Errorf("认证头期望 %q，实际 %q", want, gotAuth)
	}
}

// TestClient_RetryThenSuccess 测试 5xx 重试后成功
func TestClient_RetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"teamMembers":[{"name":"A","email":"a@x.com","role":"member"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	resp, err := c.GetMembers(context.Background())
	if err != nil {
		t.Fatalf("重试后仍失败: %v", err)
	}
	if len(resp.TeamMembers) != 1 {
		t.Errorf("期望 1 个成员，实际 %d", len(resp.TeamMembers))
	}
	if calls.Load() != 3 {
		t.Errorf("期望 3 次请求，实际 %d", calls.Load())
	}
}

// TestClient_RetriesExhausted 测试重试耗尽后抛 UpstreamError 并截断响应体
func TestClient_RetriesExhausted(t *testing.T) {
	longBody := strings.Repeat("x", 1000)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(longBody))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	_, err := c.GetMembers(context.Background())

	var ue *types.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("期望 UpstreamError，实际 %T: %v", err, err)
	}
	if ue.StatusCode != http.StatusInternalServerError {
		t.Errorf("状态码期望 500，实际 %d", ue.StatusCode)
	}
	if len([]rune(ue.Body)) != 401 || !strings.HasSuffix(ue.Body, "…") {
		t.Errorf("响应体应截断到 400 字符加省略号，实际长度 %d", len(ue.Body))
	}
	if calls.Load() != 3 {
		t.Errorf("MaxRetries=2 期望 3 次请求，实际 %d", calls.Load())
	}
}

// TestClient_RateLimitRetryAfter 测试 429 按 Retry-After 等待并记录冷却
func TestClient_RateLimitRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 1)
	start := time.Now()
	_, err := c.GetMembers(context.Background())
	elapsed := time.Since(start)

	var rle *types.RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("期望 RateLimitError，实际 %T: %v", err, err)
	}
	if rle.RetryAfter != time.Second {
		t.Errorf("RetryAfter 期望 1s，实际 %v", rle.RetryAfter)
	}
	// 一次重试之间应等够 Retry-After
	if elapsed < time.Second {
		t.Errorf("应按 Retry-After 等待至少 1s，实际 %v", elapsed)
	}
	if calls.Load() != 2 {
		t.Errorf("期望 2 次请求，实际 %d", calls.Load())
	}

	until := c.RateLimitedUntil(context.Background())
	if until.IsZero() || time.Until(until) <= 0 {
		t.Errorf("429 后应处于冷却状态，实际截止时间 %v", until)
	}
}

// TestClient_SuccessClearsCooldown 测试成功响应解除冷却
func TestClient_SuccessClearsCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"teamMembers":[]}`))
	}))
	defer srv.Close()

	cooldown := cache.NewCooldownTracker(nil)
	cooldown.Set(context.Background(), time.Now().Add(time.Minute))

	c := New(Options{
		APIKey:   "key_test",
		BaseURL:  srv.URL,
		Cooldown: cooldown,
	})
	if _, err := c.GetMembers(context.Background()); err != nil {
		t.Fatalf("请求失败: %v", err)
	}

	if until := c.RateLimitedUntil(context.Background()); !until.IsZero() {
		t.Errorf("成功后冷却应解除，实际截止时间 %v", until)
	}
}

// TestClient_Timeout 测试单次超时重试耗尽后归类为 TimeoutError
func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Options{
		APIKey:         "key_test",
		BaseURL:        srv.URL,
		Timeout:        20 * time.Millisecond,
		MaxRetries:     1,
		RetryBaseDelay: 5 * time.Millisecond,
	})

	_, err := c.GetMembers(context.Background())
	var te *types.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("期望 TimeoutError，实际 %T: %v", err, err)
	}
}

// TestClient_CallerCancel 测试调用方取消立即放弃重试
func TestClient_CallerCancel(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{
		APIKey:         "key_test",
		BaseURL:        srv.URL,
		MaxRetries:     5,
		RetryBaseDelay: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.GetMembers(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("取消后应立即返回，实际耗时 %v", time.Since(start))
	}
	if calls.Load() > 2 {
		t.Errorf("取消后不应继续重试，实际 %d 次请求", calls.Load())
	}
}

// TestParseRetryAfter 测试 Retry-After 头的两种格式
func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("30"); !ok || d != 30*time.Second {
		t.Errorf("整数秒解析错误: %v %v", d, ok)
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Error("空头不应解析成功")
	}
	if _, ok := parseRetryAfter("not-a-date"); ok {
		t.Error("非法值不应解析成功")
	}

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	if d, ok := parseRetryAfter(future); !ok || d <= 0 || d > 11*time.Second {
		t.Errorf("HTTP 日期解析错误: %v %v", d, ok)
	}
}
