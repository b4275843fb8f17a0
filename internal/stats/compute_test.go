package stats

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/utils"
)

// 测试基准时刻：2026-03-10 12:00:00 UTC
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testInput(events []types.UsageEvent) Input {
	return Input{
		Timezone:           "UTC",
		NowMs:              testNow.UnixMilli(),
		UsageEvents:        events,
		ShortWindowMinutes: 15,
		LongWindowMinutes:  60,
	}
}

func eventAt(t time.Time, tu *types.TokenUsage) types.UsageEvent {
	return types.UsageEvent{
		Timestamp:  t.UnixMilli(),
		Model:      "gpt-5",
		UserEmail:  "a@x.com",
		TokenUsage: tu,
	}
}

// TestCompute_CacheReadShare 测试缓存读占比 300/400=0.75
func TestCompute_CacheReadShare(t *testing.T) {
	events := []types.UsageEvent{
		eventAt(testNow.Add(-5*time.Minute), &types.TokenUsage{
			InputTokens:     100,
			CacheReadTokens: 300,
		}),
	}

	stats, _ := Compute(testInput(events))
	if stats.CacheReadShareLast60m == nil {
		t.Fatal("缓存读占比不应为 null")
	}
	if *stats.CacheReadShareLast60m != 0.75 {
		t.Errorf("缓存读占比期望 0.75，实际 %v", *stats.CacheReadShareLast60m)
	}
}

// TestCompute_NullRatios 测试分母为零时比例字段为 null
func TestCompute_NullRatios(t *testing.T) {
	stats, _ := Compute(testInput(nil))
	if stats.CacheReadShareLast60m != nil {
		t.Errorf("无事件时缓存读占比应为 null，实际 %v", *stats.CacheReadShareLast60m)
	}
	if stats.AcceptanceRateToday != nil {
		t.Error("无日用量数据时接受率应为 null")
	}
	if stats.LinesAddedToday != nil {
		t.Error("无日用量数据时新增行数应为 null")
	}

	// JSON 序列化出来必须是 null 而不是 NaN
	b, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if m["cacheReadShareLast60m"] != nil {
		t.Errorf("JSON 中应为 null，实际 %v", m["cacheReadShareLast60m"])
	}
}

// TestCompute_CostToday 测试今日费用 150+250 分 = 4 美元
func TestCompute_CostToday(t *testing.T) {
	events := []types.UsageEvent{
		eventAt(testNow.Add(-2*time.Hour), &types.TokenUsage{TotalCents: 150}),
		eventAt(testNow.Add(-10*time.Minute), &types.TokenUsage{TotalCents: 250}),
	}

	stats, _ := Compute(testInput(events))
	if stats.CostToday.Cents != 400 || stats.CostToday.USD != 4.0 {
		t.Errorf("今日费用期望 {400 4}，实际 %+v", stats.CostToday)
	}
	// 其中只有一条落在 60 分钟窗口里
	if stats.CostLast60m.Cents != 250 {
		t.Errorf("60 分钟费用期望 250，实际 %v", stats.CostLast60m.Cents)
	}
}

// TestCompute_WindowBoundsInclusive 测试窗口两端都是闭区间
func TestCompute_WindowBoundsInclusive(t *testing.T) {
	events := []types.UsageEvent{
		eventAt(testNow.Add(-15*time.Minute), &types.TokenUsage{InputTokens: 1}),
		eventAt(testNow, &types.TokenUsage{InputTokens: 2}),
		eventAt(testNow.Add(-15*time.Minute-time.Millisecond), &types.TokenUsage{InputTokens: 100}),
	}

	stats, _ := Compute(testInput(events))
	if stats.TokensLast15m.Input != 3 {
		t.Errorf("15 分钟窗口应恰好含边界上的两条事件，实际 input=%v", stats.TokensLast15m.Input)
	}
}

// TestCompute_MinuteSeries 测试每分钟序列的长度、排序和总量守恒
func TestCompute_MinuteSeries(t *testing.T) {
	events := []types.UsageEvent{
		eventAt(testNow.Add(-30*time.Minute), &types.TokenUsage{InputTokens: 10}),
		eventAt(testNow.Add(-30*time.Minute+5*time.Second), &types.TokenUsage{OutputTokens: 5}),
		eventAt(testNow.Add(-time.Minute), &types.TokenUsage{CacheReadTokens: 7}),
	}

	stats, _ := Compute(testInput(events))
	series := stats.TokensPerMinuteLast60m

	if len(series) != 61 {
		t.Fatalf("60 分钟窗口期望 61 个桶，实际 %d", len(series))
	}

	var sum float64
	for i, b := range series {
		sum += b.Tokens
		if i > 0 && b.MinuteStart <= series[i-1].MinuteStart {
			t.Fatalf("桶 %d 未严格递增", i)
		}
		if b.MinuteStart%60000 != 0 {
			t.Fatalf("桶起点未对齐到分钟: %d", b.MinuteStart)
		}
	}
	if sum != stats.TokensLast60m.Total {
		t.Errorf("桶内 token 总和 %v 应等于窗口总量 %v", sum, stats.TokensLast60m.Total)
	}
}

// TestCompute_Leaderboards 测试排行榜截断与降序
func TestCompute_Leaderboards(t *testing.T) {
	var events []types.UsageEvent
	for i := 0; i < 15; i++ {
		events = append(events, types.UsageEvent{
			Timestamp:  testNow.Add(-time.Minute).UnixMilli(),
			Model:      fmt.Sprintf("model-%02d", i),
			UserEmail:  fmt.Sprintf("user%02d@x.com", i),
			TokenUsage: &types.TokenUsage{InputTokens: utils.Number(i + 1)},
		})
	}

	stats, _ := Compute(testInput(events))

	if len(stats.TopModelsLast60m) != 12 {
		t.Fatalf("模型榜期望截断到 12，实际 %d", len(stats.TopModelsLast60m))
	}
	for i := 1; i < len(stats.TopModelsLast60m); i++ {
		if stats.TopModelsLast60m[i].Tokens > stats.TopModelsLast60m[i-1].Tokens {
			t.Fatal("模型榜未按 token 降序")
		}
	}
	if stats.TopModelsLast60m[0].Model != "model-14" {
		t.Errorf("榜首期望 model-14，实际 %s", stats.TopModelsLast60m[0].Model)
	}
	if len(stats.TopUsersLast60m) != 12 {
		t.Errorf("用户榜期望截断到 12，实际 %d", len(stats.TopUsersLast60m))
	}
}

// TestCompute_BlankFieldsGroupAsUnknown 测试空白模型/邮箱归入 unknown 分组
func TestCompute_BlankFieldsGroupAsUnknown(t *testing.T) {
	events := []types.UsageEvent{
		{
			Timestamp:  testNow.Add(-time.Minute).UnixMilli(),
			Model:      "   ",
			UserEmail:  " \t",
			TokenUsage: &types.TokenUsage{InputTokens: 10},
		},
		{
			Timestamp:  testNow.Add(-2 * time.Minute).UnixMilli(),
			TokenUsage: &types.TokenUsage{InputTokens: 5},
		},
	}

	stats, _ := Compute(testInput(events))

	if len(stats.TopModelsLast60m) != 1 {
		t.Fatalf("空白与缺失模型应合并为一项，实际 %d 项", len(stats.TopModelsLast60m))
	}
	if m := stats.TopModelsLast60m[0]; m.Model != "unknown" || m.Tokens != 15 {
		t.Errorf("模型分组期望 unknown/15，实际 %s/%v", m.Model, m.Tokens)
	}

	if len(stats.TopUsersLast60m) != 1 {
		t.Fatalf("空白与缺失邮箱应合并为一项，实际 %d 项", len(stats.TopUsersLast60m))
	}
	if u := stats.TopUsersLast60m[0]; u.Email != "unknown" || u.Tokens != 15 {
		t.Errorf("用户分组期望 unknown/15，实际 %s/%v", u.Email, u.Tokens)
	}
}

// TestCompute_MissingFieldsCoerceToZero 测试脏数据降级为零而不是失败
func TestCompute_MissingFieldsCoerceToZero(t *testing.T) {
	raw := `[
		{"timestamp": "` + fmt.Sprint(testNow.Add(-time.Minute).UnixMilli()) + `", "model": "gpt-5",
		 "tokenUsage": {"inputTokens": "120", "outputTokens": "oops", "totalCents": null}},
		{"timestamp": "not-a-date"}
	]`
	var events []types.UsageEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("解析失败: %v", err)
	}

	stats, dropped := Compute(testInput(events))
	if stats.TokensLast60m.Input != 120 {
		t.Errorf("数字字符串应解析为 120，实际 %v", stats.TokensLast60m.Input)
	}
	if stats.TokensLast60m.Output != 0 {
		t.Errorf("非法值应降级为 0，实际 %v", stats.TokensLast60m.Output)
	}
	if dropped != 1 {
		t.Errorf("时间戳非法的事件应被丢弃并计数，实际 %d", dropped)
	}
}

// TestCompute_DailyRollupSameDayOnly 测试日用量只累计今天的行
func TestCompute_DailyRollupSameDayOnly(t *testing.T) {
	daily := &types.DailyUsageResponse{
		Data: []types.DailyUsageRow{
			{
				Date:            utils.Number(testNow.Add(-2 * time.Hour).UnixMilli()),
				TotalLinesAdded: 100,
				TotalAccepts:    30,
				TotalRejects:    10,
				ChatRequests:    5,
			},
			{
				// 昨天的行不计入
				Date:            utils.Number(testNow.Add(-26 * time.Hour).UnixMilli()),
				TotalLinesAdded: 999,
				TotalAccepts:    999,
			},
		},
	}

	in := testInput(nil)
	in.DailyUsage = daily
	stats, _ := Compute(in)

	if stats.LinesAddedToday == nil || *stats.LinesAddedToday != 100 {
		t.Errorf("今日新增行数期望 100，实际 %v", stats.LinesAddedToday)
	}
	if stats.AcceptanceRateToday == nil || *stats.AcceptanceRateToday != 0.75 {
		t.Errorf("接受率期望 0.75，实际 %v", stats.AcceptanceRateToday)
	}
	if stats.Daily.ChatRequests != 5 {
		t.Errorf("chatRequests 期望 5，实际 %v", stats.Daily.ChatRequests)
	}
}

// TestCompute_TimezoneDayBoundary 测试"今天"按配置时区切分
func TestCompute_TimezoneDayBoundary(t *testing.T) {
	// UTC 上午 2 点的事件，在 UTC-5 的时区里属于昨天
	nowMs := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC).UnixMilli()
	events := []types.UsageEvent{
		{
			Timestamp:  time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC).UnixMilli(),
			UserEmail:  "a@x.com",
			TokenUsage: &types.TokenUsage{TotalCents: 100},
		},
	}

	utcStats, _ := Compute(Input{
		Timezone: "UTC", NowMs: nowMs, UsageEvents: events,
		ShortWindowMinutes: 15, LongWindowMinutes: 60,
	})
	if utcStats.CostToday.Cents != 100 {
		t.Errorf("UTC 下事件属于今天，期望 100，实际 %v", utcStats.CostToday.Cents)
	}

	nyStats, _ := Compute(Input{
		Timezone: "America/New_York", NowMs: nowMs, UsageEvents: events,
		ShortWindowMinutes: 15, LongWindowMinutes: 60,
	})
	if nyStats.CostToday.Cents != 0 {
		t.Errorf("纽约时区下事件属于昨天，期望 0，实际 %v", nyStats.CostToday.Cents)
	}
}

// TestCompute_SpendRollup 测试月度消费汇总与消费榜
func TestCompute_SpendRollup(t *testing.T) {
	in := testInput(nil)
	in.Spend = &types.SpendResponse{
		TeamMemberSpend: []types.SpendRow{
			{Email: "a@x.com", SpendCents: 500, FastPremiumRequests: 10},
			{Email: "b@x.com", SpendCents: 1500, FastPremiumRequests: 5},
			{Name: "无邮箱的人", SpendCents: 100},
		},
	}
	in.Members = &types.MembersResponse{
		TeamMembers: []types.TeamMember{{Email: "a@x.com"}, {Email: "b@x.com"}},
	}

	stats, _ := Compute(in)
	if stats.MonthToDateSpend.Cents != 2100 || stats.MonthToDateSpend.USD != 21 {
		t.Errorf("月度消费期望 {2100 21}，实际 %+v", stats.MonthToDateSpend)
	}
	if stats.FastPremiumRequestsMonth != 15 {
		t.Errorf("快速请求数期望 15，实际 %v", stats.FastPremiumRequestsMonth)
	}
	if stats.TopSpendersMonth[0].Email != "b@x.com" {
		t.Errorf("消费榜首期望 b@x.com，实际 %s", stats.TopSpendersMonth[0].Email)
	}
	if stats.TopSpendersMonth[2].Email != "无邮箱的人" {
		t.Errorf("缺邮箱时应回退到名字，实际 %s", stats.TopSpendersMonth[2].Email)
	}
	if stats.Team.Members != 2 {
		t.Errorf("团队人数期望 2，实际 %d", stats.Team.Members)
	}
}

// TestCompute_Deterministic 测试相同输入产出相同快照
func TestCompute_Deterministic(t *testing.T) {
	var events []types.UsageEvent
	for i := 0; i < 30; i++ {
		events = append(events, types.UsageEvent{
			Timestamp:  testNow.Add(-time.Duration(i) * time.Minute).UnixMilli(),
			Model:      fmt.Sprintf("model-%d", i%5),
			UserEmail:  fmt.Sprintf("u%d@x.com", i%7),
			TokenUsage: &types.TokenUsage{InputTokens: utils.Number(i), TotalCents: utils.Number(i * 2)},
		})
	}

	first, firstDropped := Compute(testInput(events))
	for i := 0; i < 5; i++ {
		again, droppedAgain := Compute(testInput(events))
		if !reflect.DeepEqual(first, again) || firstDropped != droppedAgain {
			t.Fatal("相同输入产出了不同快照")
		}
	}
}

// TestCompute_ActiveUsers 测试去重活跃用户数
func TestCompute_ActiveUsers(t *testing.T) {
	mk := func(offset time.Duration, email string) types.UsageEvent {
		return types.UsageEvent{
			Timestamp: testNow.Add(offset).UnixMilli(),
			UserEmail: email,
		}
	}
	events := []types.UsageEvent{
		mk(-5*time.Minute, "a@x.com"),
		mk(-10*time.Minute, "a@x.com"),
		mk(-30*time.Minute, "b@x.com"),
		mk(-5*time.Hour, "c@x.com"), // 今天但不在 60 分钟窗口内
	}

	stats, _ := Compute(testInput(events))
	if stats.ActiveUsersLast60m != 2 {
		t.Errorf("60 分钟活跃用户期望 2，实际 %d", stats.ActiveUsersLast60m)
	}
	if stats.ActiveUsersToday != 3 {
		t.Errorf("今日活跃用户期望 3，实际 %d", stats.ActiveUsersToday)
	}
}
