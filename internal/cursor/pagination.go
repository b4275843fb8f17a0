package cursor

import (
	"context"

	"github.com/Schmidt-Embedded-Systems-GmbH/cursor-live-ticker/internal/types"
)

// FetchAllUsageEvents 翻页拉取区间内的全部用量事件
// 返回的事件数小于 pageSize 说明到底了；最多翻 maxPages 页兜底
func (c *Client) FetchAllUsageEvents(ctx context.Context, startDate, endDate int64, pageSize, maxPages int) ([]types.UsageEvent, error) {
	all := make([]types.UsageEvent, 0, pageSize)

	for page := 1; page <= maxPages; page++ {
		resp, err := c.GetFilteredUsageEvents(ctx, startDate, endDate, page, pageSize)
		if err != nil {
			return nil, err
		}

		events := resp.Events()
		all = append(all, events...)

		if len(events) < pageSize {
			break
		}
	}
	return all, nil
}

// FetchAllSpend 拉取全部消费分页并拍平成单个响应
// 第一页给出 totalPages，后续页的行直接追加到第一页上
func (c *Client) FetchAllSpend(ctx context.Context, pageSize int) (*types.SpendResponse, error) {
	first, err := c.GetSpend(ctx, 1, pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int(first.TotalPages.Int64())
	if totalPages <= 1 {
		return first, nil
	}

	for page := 2; page <= totalPages; page++ {
		resp, err := c.GetSpend(ctx, page, pageSize)
		if err != nil {
			return nil, err
		}
		first.TeamMemberSpend = append(first.TeamMemberSpend, resp.TeamMemberSpend...)
	}
	return first, nil
}
