package privacy

import (
	"strings"
	"unicode"
)

// 邮箱展示模式
const (
	ModeFull          = "full"          // 原样展示
	ModeMasked        = "masked"        // j***@example.com
	ModeFirstNameOnly = "firstNameOnly" // John
	ModeInitials      = "initials"      // JD
)

// ValidModes 配置校验用的模式全集
var ValidModes = []string{ModeFull, ModeMasked, ModeFirstNameOnly, ModeInitials}

// splitLocal 把邮箱本地部分按常见分隔符拆成名字片段
func splitLocal(local string) []string {
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return []string{local}
	}
	return parts
}

// capitalize 首字母大写
func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// TransformEmail 按配置的展示模式脱敏邮箱
// 未知模式和空邮箱原样返回，排行榜展示不因配置错误而丢数据
func TransformEmail(email, mode string) string {
	if email == "" || mode == "" || mode == ModeFull {
		return email
	}

	local := email
	domain := ""
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
		domain = email[at:]
	}

	switch mode {
	case ModeMasked:
		runes := []rune(local)
		if len(runes) == 0 {
			return email
		}
		return string(runes[0]) + "***" + domain
	case ModeFirstNameOnly:
		parts := splitLocal(local)
		return capitalize(parts[0])
	case ModeInitials:
		parts := splitLocal(local)
		var b strings.Builder
		for _, p := range parts {
			runes := []rune(p)
			if len(runes) == 0 {
				continue
			}
			b.WriteRune(unicode.ToUpper(runes[0]))
		}
		if b.Len() == 0 {
			return email
		}
		return b.String()
	default:
		return email
	}
}
