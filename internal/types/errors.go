package types

import (
	"fmt"
	"net/http"
	"time"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorResponse 错误响应包装
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// NewAPIError 创建 API 错误
func NewAPIError(errType, message, code string) ErrorResponse {
	return ErrorResponse{
		Error: APIError{
			Type:    errType,
			Message: message,
			Code:    code,
		},
	}
}

// ErrorCodeFromStatus 根据 HTTP 状态码返回错误代码
func ErrorCodeFromStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// ErrorTypeFromStatus 根据 HTTP 状态码返回错误类型
func ErrorTypeFromStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return "timeout_error"
	default:
		return "api_error"
	}
}

// ========== 上游错误分类 ==========

// RateLimitError 上游限流错误：重试耗尽后仍收到 429
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration // 服务端给出的等待时长，未知时为 0
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// TimeoutError 上游超时错误：重试耗尽后请求仍超时
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	return e.Message
}

// UpstreamError 上游一般错误：非 2xx 且非 429 的响应
// Body 为截断后的响应体片段（≤400 字符），仅用于诊断
type UpstreamError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Cursor API %s %s failed: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}
