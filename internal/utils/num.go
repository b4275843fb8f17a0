package utils

import (
	"strconv"
	"strings"
	"time"
)

// Number 宽容数值类型：上游字段可能是数字、数字字符串或缺失
// 解析失败时取 0，永不返回错误，保证聚合不会因脏数据整体失败
type Number float64

// UnmarshalJSON 实现宽容解析：数字 / 数字字符串 / 其他 → 0
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	if s[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			*n = 0
			return nil
		}
		s = strings.TrimSpace(unquoted)
	}
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// Float64 返回 float64 值
func (n Number) Float64() float64 {
	return float64(n)
}

// Int64 返回取整后的 int64 值
func (n Number) Int64() int64 {
	return int64(n)
}

// Num 宽容数值转换：数字 / 数字字符串 / 其他 → 0
// 与 Number 保持同一套语义，用于 interface{} 类型的字段
func Num(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case Number:
		return float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// 时间戳字符串的候选格式（对应 JS Date.parse 接受的常见形态）
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EventTimestampMs 归一化事件时间戳为毫秒
// 依次尝试：数字 → 数字字符串 → ISO 日期字符串，都失败时返回 false
func EventTimestampMs(raw any) (int64, bool) {
	switch ts := raw.(type) {
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return 0, false
		}
		// 部分响应用字符串形式的毫秒时间戳
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if f > 0 {
				return int64(f), true
			}
			return 0, false
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				ms := t.UnixMilli()
				if ms > 0 {
					return ms, true
				}
			}
		}
		return 0, false
	default:
		if f := Num(raw); f > 0 {
			return int64(f), true
		}
		return 0, false
	}
}
