package stats

// TokenAgg 一个时间窗口内的 token 聚合
type TokenAgg struct {
	Total      float64 `json:"total"`
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cacheRead"`
	CacheWrite float64 `json:"cacheWrite"`
	CostCents  float64 `json:"costCents"`
}

// Cost 费用，同时给出分和美元两种单位
type Cost struct {
	Cents float64 `json:"cents"`
	USD   float64 `json:"usd"`
}

// ModelEntry 模型排行榜条目
type ModelEntry struct {
	Model    string  `json:"model"`
	Tokens   float64 `json:"tokens"`
	USD      float64 `json:"usd"`
	Requests int     `json:"requests"`
}

// UserEntry 用户排行榜条目
type UserEntry struct {
	Email    string  `json:"email"`
	Tokens   float64 `json:"tokens"`
	Requests int     `json:"requests"`
}

// MinuteBucket 每分钟 token 序列中的一个桶
type MinuteBucket struct {
	MinuteStart int64   `json:"minuteStart"`
	Tokens      float64 `json:"tokens"`
}

// DailyAgg 当日 IDE 行为计数器汇总（来自日用量数据）
type DailyAgg struct {
	ChatRequests             float64 `json:"chatRequests"`
	ComposerRequests         float64 `json:"composerRequests"`
	AgentRequests            float64 `json:"agentRequests"`
	CmdkUsages               float64 `json:"cmdkUsages"`
	TotalTabsShown           float64 `json:"totalTabsShown"`
	TotalTabsAccepted        float64 `json:"totalTabsAccepted"`
	UsageBasedReqs           float64 `json:"usageBasedReqs"`
	SubscriptionIncludedReqs float64 `json:"subscriptionIncludedReqs"`
	APIKeyReqs               float64 `json:"apiKeyReqs"`
	TotalApplies             float64 `json:"totalApplies"`
	TotalAccepts             float64 `json:"totalAccepts"`
	TotalRejects             float64 `json:"totalRejects"`
	TotalLinesDeleted        float64 `json:"totalLinesDeleted"`
	AcceptedLinesAdded       float64 `json:"acceptedLinesAdded"`
	AcceptedLinesDeleted     float64 `json:"acceptedLinesDeleted"`
}

// SpenderEntry 消费排行榜条目
type SpenderEntry struct {
	Email string  `json:"email"`
	USD   float64 `json:"usd"`
	Cents float64 `json:"cents"`
}

// Team 团队概况
type Team struct {
	Members int `json:"members"`
}

// ComputedStats 一次聚合产出的完整快照
// 比例类字段用指针表达"分母为零时无值"，序列化成 null 而不是 NaN
type ComputedStats struct {
	TokensToday   TokenAgg `json:"tokensToday"`
	TokensLast15m TokenAgg `json:"tokensLast15m"`
	TokensLast60m TokenAgg `json:"tokensLast60m"`

	CostToday   Cost `json:"costToday"`
	CostLast60m Cost `json:"costLast60m"`

	CacheReadShareLast60m *float64 `json:"cacheReadShareLast60m"`

	ActiveUsersLast60m int `json:"activeUsersLast60m"`
	ActiveUsersToday   int `json:"activeUsersToday"`

	TopModelsLast60m []ModelEntry `json:"topModelsLast60m"`
	TopUsersLast60m  []UserEntry  `json:"topUsersLast60m"`

	TokensPerMinuteLast60m []MinuteBucket `json:"tokensPerMinuteLast60m"`

	AcceptanceRateToday *float64 `json:"acceptanceRateToday"`
	LinesAddedToday     *float64 `json:"linesAddedToday"`
	Daily               DailyAgg `json:"daily"`

	MonthToDateSpend         Cost           `json:"monthToDateSpend"`
	FastPremiumRequestsMonth float64        `json:"fastPremiumRequestsMonth"`
	TopSpendersMonth         []SpenderEntry `json:"topSpendersMonth"`

	Team Team `json:"team"`
}
