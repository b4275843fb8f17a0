package types

import (
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/utils"
)

// TeamMember 团队成员
type TeamMember struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"` // owner / member / free-owner 等
}

// MembersResponse /teams/members 响应
type MembersResponse struct {
	TeamMembers []TeamMember `json:"teamMembers"`
}

// DailyUsageRow 单个用户单日的用量汇总行
// 数值字段统一用宽容解析，上游偶尔会给数字字符串
type DailyUsageRow struct {
	Date                     utils.Number `json:"date"` // 毫秒时间戳，截断到所在日
	IsActive                 bool         `json:"isActive"`
	TotalLinesAdded          utils.Number `json:"totalLinesAdded"`
	TotalLinesDeleted        utils.Number `json:"totalLinesDeleted"`
	AcceptedLinesAdded       utils.Number `json:"acceptedLinesAdded"`
	AcceptedLinesDeleted     utils.Number `json:"acceptedLinesDeleted"`
	TotalApplies             utils.Number `json:"totalApplies"`
	TotalAccepts             utils.Number `json:"totalAccepts"`
	TotalRejects             utils.Number `json:"totalRejects"`
	TotalTabsShown           utils.Number `json:"totalTabsShown"`
	TotalTabsAccepted        utils.Number `json:"totalTabsAccepted"`
	ComposerRequests         utils.Number `json:"composerRequests"`
	ChatRequests             utils.Number `json:"chatRequests"`
	AgentRequests            utils.Number `json:"agentRequests"`
	CmdkUsages               utils.Number `json:"cmdkUsages"`
	SubscriptionIncludedReqs utils.Number `json:"subscriptionIncludedReqs"`
	APIKeyReqs               utils.Number `json:"apiKeyReqs"`
	UsageBasedReqs           utils.Number `json:"usageBasedReqs"`
	BugbotUsages             utils.Number `json:"bugbotUsages"`
	MostUsedModel            string       `json:"mostUsedModel"`
	Email                    string       `json:"email,omitempty"`
}

// DailyUsagePeriod 日用量查询区间
type DailyUsagePeriod struct {
	StartDate int64 `json:"startDate"`
	EndDate   int64 `json:"endDate"`
}

// DailyUsageResponse /teams/daily-usage-data 响应
type DailyUsageResponse struct {
	Data   []DailyUsageRow  `json:"data"`
	Period DailyUsagePeriod `json:"period"`
}

// SpendRow 单个成员当前计费周期的消费
type SpendRow struct {
	SpendCents               utils.Number `json:"spendCents"`
	FastPremiumRequests      utils.Number `json:"fastPremiumRequests"`
	Name                     string       `json:"name"`
	Email                    string       `json:"email"`
	Role                     string       `json:"role"`
	HardLimitOverrideDollars utils.Number `json:"hardLimitOverrideDollars"`
}

// SpendResponse /teams/spend 响应（分页）
type SpendResponse struct {
	TeamMemberSpend        []SpendRow   `json:"teamMemberSpend"`
	SubscriptionCycleStart utils.Number `json:"subscriptionCycleStart"`
	TotalMembers           utils.Number `json:"totalMembers"`
	TotalPages             utils.Number `json:"totalPages"`
}

// TokenUsage 单次模型调用的 token 明细
type TokenUsage struct {
	InputTokens      utils.Number `json:"inputTokens"`
	OutputTokens     utils.Number `json:"outputTokens"`
	CacheReadTokens  utils.Number `json:"cacheReadTokens"`
	CacheWriteTokens utils.Number `json:"cacheWriteTokens"`
	TotalCents       utils.Number `json:"totalCents"`
}

// UsageEvent 单条模型调用事件
// Timestamp 可能是毫秒数字、数字字符串或 ISO 字符串，聚合时统一归一化
type UsageEvent struct {
	Timestamp        any         `json:"timestamp"`
	Model            string      `json:"model,omitempty"`
	Kind             string      `json:"kind,omitempty"`
	MaxMode          bool        `json:"maxMode,omitempty"`
	UserEmail        string      `json:"userEmail,omitempty"`
	IsTokenBasedCall bool        `json:"isTokenBasedCall,omitempty"`
	TokenUsage       *TokenUsage `json:"tokenUsage,omitempty"`
}

// UsageEventsResponse /teams/filtered-usage-events 响应
// 不同版本的 API 返回的事件字段名不一致，这里全部兼容
type UsageEventsResponse struct {
	TotalUsageEventsCount utils.Number `json:"totalUsageEventsCount"`
	UsageEventsDisplay    []UsageEvent `json:"usageEventsDisplay"`
	UsageEvents           []UsageEvent `json:"usageEvents"`
	Data                  []UsageEvent `json:"data"`
}

// Events 取出事件列表，按已知字段名的优先级依次尝试
func (r *UsageEventsResponse) Events() []UsageEvent {
	if r == nil {
		return nil
	}
	if r.UsageEventsDisplay != nil {
		return r.UsageEventsDisplay
	}
	if r.UsageEvents != nil {
		return r.UsageEvents
	}
	if r.Data != nil {
		return r.Data
	}
	return nil
}
