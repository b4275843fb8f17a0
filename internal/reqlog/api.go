package reqlog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HandleQueryLogs 处理 GET /api/fetch-log
// 支持 page / page_size / source / date_from / date_to 查询参数
func HandleQueryLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "100"))

	result, err := QueryLogs(GetLogDB(), QueryParams{
		Page:     page,
		PageSize: pageSize,
		Source:   c.Query("source"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSummary 处理 GET /api/fetch-log/summary
// 默认汇总最近 24 小时，hours 参数可调
func HandleSummary(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours < 1 {
		hours = 24
	}

	summaries, err := Summarize(GetLogDB(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours, "sources": summaries})
}
