package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/logger"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/privacy"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/service"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/stats"
	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

// sourceMeta 单个数据源的来源信息
type sourceMeta struct {
	FetchedAt int64 `json:"fetchedAt"`
	Count     int   `json:"count,omitempty"`
	Rows      int   `json:"rows,omitempty"`
}

// statsResponse /api/stats 响应信封
type statsResponse struct {
	GeneratedAt int64                 `json:"generatedAt"`
	Timezone    string                `json:"timezone"`
	Stats       *stats.ComputedStats  `json:"stats"`
	Sources     map[string]sourceMeta `json:"sources"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// location 解析生效时区，配置加载时已校验过，失败兜底 UTC
func location(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HandleStats 处理 GET /api/stats
// 四个数据源各自走缓存，任何一个拉取失败则整个请求失败
func HandleStats(c *gin.Context) {
	client := GetClient()
	respCache := GetCache()
	cfg := GetTickerConfig()
	timezone := GetTimezone()

	nowMs := time.Now().UnixMilli()
	loc := location(timezone)
	now := time.UnixMilli(nowMs).In(loc)

	y, m, d := now.Date()
	startOfTodayMs := time.Date(y, m, d, 0, 0, 0, 0, loc).UnixMilli()

	ctx := c.Request.Context()

	// 用量事件：缓存键按"今天"切换，跨天自动开新键
	usageKey := fmt.Sprintf("usageEvents:%d", startOfTodayMs)
	usageVal, usageAt, err := respCache.Get(ctx, usageKey,
		time.Duration(cfg.Data.UsageEvents.PollIntervalMs)*time.Millisecond,
		func(fctx context.Context) (any, error) {
			return client.FetchAllUsageEvents(fctx, startOfTodayMs, nowMs,
				cfg.Data.UsageEvents.PageSize, cfg.Data.UsageEvents.MaxPages)
		})
	if err != nil {
		service.RespondUpstreamError(c, err)
		return
	}
	usageEvents, _ := usageVal.([]types.UsageEvent)

	// 日用量：按回看窗口切键
	dailyStartDay := now.AddDate(0, 0, -cfg.Data.DailyUsage.LookbackDays)
	dy, dm, dd := dailyStartDay.Date()
	dailyStartMs := time.Date(dy, dm, dd, 0, 0, 0, 0, loc).UnixMilli()
	dailyEndMs := time.Date(y, m, d, 23, 59, 59, 999_000_000, loc).UnixMilli()

	dailyKey := fmt.Sprintf("dailyUsage:%d:%d", dailyStartMs, dailyEndMs)
	dailyVal, dailyAt, err := respCache.Get(ctx, dailyKey,
		time.Duration(cfg.Data.DailyUsage.PollIntervalMs)*time.Millisecond,
		func(fctx context.Context) (any, error) {
			return client.GetDailyUsageData(fctx, dailyStartMs, dailyEndMs)
		})
	if err != nil {
		service.RespondUpstreamError(c, err)
		return
	}
	daily, _ := dailyVal.(*types.DailyUsageResponse)

	// 消费：按自然月切键
	spendKey := "spend:" + now.Format("2006-01")
	spendVal, spendAt, err := respCache.Get(ctx, spendKey,
		time.Duration(cfg.Data.Spend.PollIntervalMs)*time.Millisecond,
		func(fctx context.Context) (any, error) {
			return client.FetchAllSpend(fctx, cfg.Data.Spend.PageSize)
		})
	if err != nil {
		service.RespondUpstreamError(c, err)
		return
	}
	spend, _ := spendVal.(*types.SpendResponse)

	membersVal, membersAt, err := respCache.Get(ctx, "members",
		time.Duration(cfg.Data.Members.PollIntervalMs)*time.Millisecond,
		func(fctx context.Context) (any, error) {
			return client.GetMembers(fctx)
		})
	if err != nil {
		service.RespondUpstreamError(c, err)
		return
	}
	members, _ := membersVal.(*types.MembersResponse)

	computed, dropped := stats.Compute(stats.Input{
		Timezone:           timezone,
		NowMs:              nowMs,
		UsageEvents:        usageEvents,
		DailyUsage:         daily,
		Spend:              spend,
		Members:            members,
		ShortWindowMinutes: cfg.Data.UsageEvents.ShortWindowMinutes,
		LongWindowMinutes:  cfg.Data.UsageEvents.LongWindowMinutes,
	})

	applyPrivacy(computed, cfg.Privacy.EmailMode)

	var warnings []string
	if until := client.RateLimitedUntil(ctx); !until.IsZero() {
		if remaining := time.Until(until); remaining > 0 {
			seconds := int(remaining.Seconds()) + 1
			warnings = append(warnings,
				fmt.Sprintf("Cursor API rate limited, data may be stale; retrying in %ds", seconds))
		}
	}
	if dropped > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%d usage events had unparseable timestamps and were excluded", dropped))
		logger.Warn("部分事件时间戳无法解析", logger.Int("dropped", dropped))
	}

	dailyRows := 0
	if daily != nil {
		dailyRows = len(daily.Data)
	}
	spendRows := 0
	if spend != nil {
		spendRows = len(spend.TeamMemberSpend)
	}
	memberRows := 0
	if members != nil {
		memberRows = len(members.TeamMembers)
	}

	c.JSON(http.StatusOK, statsResponse{
		GeneratedAt: nowMs,
		Timezone:    timezone,
		Stats:       computed,
		Sources: map[string]sourceMeta{
			"usageEvents": {FetchedAt: usageAt.UnixMilli(), Count: len(usageEvents)},
			"dailyUsage":  {FetchedAt: dailyAt.UnixMilli(), Rows: dailyRows},
			"spend":       {FetchedAt: spendAt.UnixMilli(), Rows: spendRows},
			"members":     {FetchedAt: membersAt.UnixMilli(), Rows: memberRows},
		},
		Warnings: warnings,
	})
}

// applyPrivacy 对榜单里的邮箱做脱敏
func applyPrivacy(s *stats.ComputedStats, mode string) {
	if mode == "" || mode == privacy.ModeFull {
		return
	}
	for i := range s.TopUsersLast60m {
		s.TopUsersLast60m[i].Email = privacy.TransformEmail(s.TopUsersLast60m[i].Email, mode)
	}
	for i := range s.TopSpendersMonth {
		s.TopSpendersMonth[i].Email = privacy.TransformEmail(s.TopSpendersMonth[i].Email, mode)
	}
}
