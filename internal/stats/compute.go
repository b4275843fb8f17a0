package stats

import (
	"sort"
	"strings"
	"time"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/utils"
)

const leaderboardSize = 12

// Input 聚合输入：原始上游数据加上时间参数
// DailyUsage / Spend / Members 允许为 nil，对应区块降级为零值
type Input struct {
	Timezone           string
	NowMs              int64
	UsageEvents        []types.UsageEvent
	DailyUsage         *types.DailyUsageResponse
	Spend              *types.SpendResponse
	Members            *types.MembersResponse
	ShortWindowMinutes int
	LongWindowMinutes  int
}

// loadLocation 解析时区，失败回退 UTC
func loadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// tokenTotal 单个事件的 token 总量
func tokenTotal(tu *types.TokenUsage) float64 {
	if tu == nil {
		return 0
	}
	return tu.InputTokens.Float64() + tu.OutputTokens.Float64() +
		tu.CacheReadTokens.Float64() + tu.CacheWriteTokens.Float64()
}

// aggregateTokens 把一组事件的 token 明细累加成窗口聚合
func aggregateTokens(events []types.UsageEvent) TokenAgg {
	var agg TokenAgg
	for _, ev := range events {
		if ev.TokenUsage == nil {
			continue
		}
		agg.Input += ev.TokenUsage.InputTokens.Float64()
		agg.Output += ev.TokenUsage.OutputTokens.Float64()
		agg.CacheRead += ev.TokenUsage.CacheReadTokens.Float64()
		agg.CacheWrite += ev.TokenUsage.CacheWriteTokens.Float64()
		agg.CostCents += ev.TokenUsage.TotalCents.Float64()
	}
	agg.Total = agg.Input + agg.Output + agg.CacheRead + agg.CacheWrite
	return agg
}

// distinctEmails 统计出现过的邮箱数
func distinctEmails(events []types.UsageEvent) int {
	set := make(map[string]struct{})
	for _, ev := range events {
		if ev.UserEmail != "" {
			set[ev.UserEmail] = struct{}{}
		}
	}
	return len(set)
}

// Compute 纯聚合函数：相同输入永远产出相同快照
// 第二个返回值是时间戳无法解析而被丢弃的事件数，供响应里的 warnings 提示
func Compute(in Input) (*ComputedStats, int) {
	loc := loadLocation(in.Timezone)
	now := time.UnixMilli(in.NowMs).In(loc)

	y, m, d := now.Date()
	startOfToday := time.Date(y, m, d, 0, 0, 0, 0, loc)

	nowMs := in.NowMs
	startTodayMs := startOfToday.UnixMilli()
	start15mMs := now.Add(-time.Duration(in.ShortWindowMinutes) * time.Minute).UnixMilli()
	start60mMs := now.Add(-time.Duration(in.LongWindowMinutes) * time.Minute).UnixMilli()

	// 时间戳只解析一次，窗口过滤共用结果
	type stampedEvent struct {
		types.UsageEvent
		ms int64
	}
	stamped := make([]stampedEvent, 0, len(in.UsageEvents))
	dropped := 0
	for _, ev := range in.UsageEvents {
		ms, ok := utils.EventTimestampMs(ev.Timestamp)
		if !ok {
			dropped++
			continue
		}
		stamped = append(stamped, stampedEvent{UsageEvent: ev, ms: ms})
	}

	filter := func(fromMs, toMs int64) []types.UsageEvent {
		out := make([]types.UsageEvent, 0, len(stamped))
		for _, ev := range stamped {
			if ev.ms >= fromMs && ev.ms <= toMs {
				out = append(out, ev.UsageEvent)
			}
		}
		return out
	}

	eventsToday := filter(startTodayMs, nowMs)
	events15m := filter(start15mMs, nowMs)
	events60m := filter(start60mMs, nowMs)

	tokensToday := aggregateTokens(eventsToday)
	tokens15m := aggregateTokens(events15m)
	tokens60m := aggregateTokens(events60m)

	stats := &ComputedStats{
		TokensToday:   tokensToday,
		TokensLast15m: tokens15m,
		TokensLast60m: tokens60m,
		CostToday:     Cost{Cents: tokensToday.CostCents, USD: tokensToday.CostCents / 100},
		CostLast60m:   Cost{Cents: tokens60m.CostCents, USD: tokens60m.CostCents / 100},

		ActiveUsersToday:   distinctEmails(eventsToday),
		ActiveUsersLast60m: distinctEmails(events60m),

		TopModelsLast60m: []ModelEntry{},
		TopUsersLast60m:  []UserEntry{},
		TopSpendersMonth: []SpenderEntry{},
	}

	// 缓存读占比：分母为零时保持 null
	if denom := tokens60m.Input + tokens60m.CacheRead; denom > 0 {
		share := tokens60m.CacheRead / denom
		stats.CacheReadShareLast60m = &share
	}

	// 60 分钟窗口内的模型 / 用户排行榜
	type modelAcc struct {
		tokens   float64
		cents    float64
		requests int
	}
	type userAcc struct {
		tokens   float64
		requests int
	}
	byModel := make(map[string]*modelAcc)
	byUser := make(map[string]*userAcc)

	for _, ev := range events60m {
		model := strings.TrimSpace(ev.Model)
		if model == "" {
			model = "unknown"
		}
		email := strings.TrimSpace(ev.UserEmail)
		if email == "" {
			email = "unknown"
		}

		t := tokenTotal(ev.TokenUsage)
		var c float64
		if ev.TokenUsage != nil {
			c = ev.TokenUsage.TotalCents.Float64()
		}

		ma := byModel[model]
		if ma == nil {
			ma = &modelAcc{}
			byModel[model] = ma
		}
		ma.tokens += t
		ma.cents += c
		ma.requests++

		ua := byUser[email]
		if ua == nil {
			ua = &userAcc{}
			byUser[email] = ua
		}
		ua.tokens += t
		ua.requests++
	}

	for model, acc := range byModel {
		stats.TopModelsLast60m = append(stats.TopModelsLast60m, ModelEntry{
			Model:    model,
			Tokens:   acc.tokens,
			USD:      acc.cents / 100,
			Requests: acc.requests,
		})
	}
	sort.SliceStable(stats.TopModelsLast60m, func(i, j int) bool {
		a, b := stats.TopModelsLast60m[i], stats.TopModelsLast60m[j]
		if a.Tokens != b.Tokens {
			return a.Tokens > b.Tokens
		}
		return a.Model < b.Model
	})
	if len(stats.TopModelsLast60m) > leaderboardSize {
		stats.TopModelsLast60m = stats.TopModelsLast60m[:leaderboardSize]
	}

	for email, acc := range byUser {
		stats.TopUsersLast60m = append(stats.TopUsersLast60m, UserEntry{
			Email:    email,
			Tokens:   acc.tokens,
			Requests: acc.requests,
		})
	}
	sort.SliceStable(stats.TopUsersLast60m, func(i, j int) bool {
		a, b := stats.TopUsersLast60m[i], stats.TopUsersLast60m[j]
		if a.Tokens != b.Tokens {
			return a.Tokens > b.Tokens
		}
		return a.Email < b.Email
	})
	if len(stats.TopUsersLast60m) > leaderboardSize {
		stats.TopUsersLast60m = stats.TopUsersLast60m[:leaderboardSize]
	}

	// 每分钟 token 序列：窗口起点到现在，按分钟向下取整，空桶补零
	startMinute := start60mMs / 60000 * 60000
	endMinute := nowMs / 60000 * 60000

	buckets := make(map[int64]float64)
	for t := startMinute; t <= endMinute; t += 60000 {
		buckets[t] = 0
	}
	for _, ev := range stamped {
		if ev.ms < start60mMs || ev.ms > nowMs {
			continue
		}
		bucket := ev.ms / 60000 * 60000
		if _, ok := buckets[bucket]; !ok {
			continue
		}
		buckets[bucket] += tokenTotal(ev.TokenUsage)
	}

	series := make([]MinuteBucket, 0, len(buckets))
	for t := startMinute; t <= endMinute; t += 60000 {
		series = append(series, MinuteBucket{MinuteStart: t, Tokens: buckets[t]})
	}
	stats.TokensPerMinuteLast60m = series

	// 日用量汇总：只取与"今天"同一自然日的行
	if in.DailyUsage != nil && len(in.DailyUsage.Data) > 0 {
		var totalLinesAdded float64
		for _, row := range in.DailyUsage.Data {
			rowDay := time.UnixMilli(row.Date.Int64()).In(loc)
			ry, rm, rd := rowDay.Date()
			if ry != y || rm != m || rd != d {
				continue
			}

			totalLinesAdded += row.TotalLinesAdded.Float64()

			stats.Daily.TotalLinesDeleted += row.TotalLinesDeleted.Float64()
			stats.Daily.AcceptedLinesAdded += row.AcceptedLinesAdded.Float64()
			stats.Daily.AcceptedLinesDeleted += row.AcceptedLinesDeleted.Float64()

			stats.Daily.TotalApplies += row.TotalApplies.Float64()
			stats.Daily.TotalAccepts += row.TotalAccepts.Float64()
			stats.Daily.TotalRejects += row.TotalRejects.Float64()

			stats.Daily.TotalTabsShown += row.TotalTabsShown.Float64()
			stats.Daily.TotalTabsAccepted += row.TotalTabsAccepted.Float64()

			stats.Daily.ComposerRequests += row.ComposerRequests.Float64()
			stats.Daily.ChatRequests += row.ChatRequests.Float64()
			stats.Daily.AgentRequests += row.AgentRequests.Float64()
			stats.Daily.CmdkUsages += row.CmdkUsages.Float64()

			stats.Daily.SubscriptionIncludedReqs += row.SubscriptionIncludedReqs.Float64()
			stats.Daily.APIKeyReqs += row.APIKeyReqs.Float64()
			stats.Daily.UsageBasedReqs += row.UsageBasedReqs.Float64()
		}

		if denom := stats.Daily.TotalAccepts + stats.Daily.TotalRejects; denom > 0 {
			rate := stats.Daily.TotalAccepts / denom
			stats.AcceptanceRateToday = &rate
		}
		stats.LinesAddedToday = &totalLinesAdded
	}

	// 当月消费汇总（上游的 spend 数据天然按计费周期）
	if in.Spend != nil {
		var monthCents float64
		for _, row := range in.Spend.TeamMemberSpend {
			monthCents += row.SpendCents.Float64()
			stats.FastPremiumRequestsMonth += row.FastPremiumRequests.Float64()

			email := row.Email
			if email == "" {
				email = row.Name
			}
			if email == "" {
				email = "unknown"
			}
			stats.TopSpendersMonth = append(stats.TopSpendersMonth, SpenderEntry{
				Email: email,
				Cents: row.SpendCents.Float64(),
				USD:   row.SpendCents.Float64() / 100,
			})
		}
		stats.MonthToDateSpend = Cost{Cents: monthCents, USD: monthCents / 100}

		sort.SliceStable(stats.TopSpendersMonth, func(i, j int) bool {
			a, b := stats.TopSpendersMonth[i], stats.TopSpendersMonth[j]
			if a.Cents != b.Cents {
				return a.Cents > b.Cents
			}
			return a.Email < b.Email
		})
		if len(stats.TopSpendersMonth) > leaderboardSize {
			stats.TopSpendersMonth = stats.TopSpendersMonth[:leaderboardSize]
		}
	}

	if in.Members != nil {
		stats.Team.Members = len(in.Members.TeamMembers)
	}

	return stats, dropped
}
