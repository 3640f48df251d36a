package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/usagelog"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// UsageLogHandler 调用日志查询处理器（只读）
type UsageLogHandler struct {
	service *usagelog.Service
}

// NewUsageLogHandler 创建 UsageLogHandler
func NewUsageLogHandler(service *usagelog.Service) *UsageLogHandler {
	return &UsageLogHandler{service: service}
}

// ListUsageLogs 最近的调用日志
// @Summary 查询调用日志
// @Tags usage-logs
// @Produce json
// @Param provider query string false "供应商名称"
// @Param request_id query string false "路由请求 ID"
// @Param limit query int false "条数（默认 50，最大 500）"
// @Router /api/usage-logs [get]
func (h *UsageLogHandler) ListUsageLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.Recent(c.Request.Context(), usagelog.Query{
		ProviderName: c.Query("provider"),
		RequestID:    c.Query("request_id"),
		Limit:        limit,
	})
	if err != nil {
		log.WithError(err).Error("api: list usage logs failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list usage logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// Summary 按供应商汇总调用日志
// @Summary 调用日志汇总
// @Tags usage-logs
// @Produce json
// @Param hours query int false "统计最近多少小时（默认 24）"
// @Router /api/usage-logs/summary [get]
func (h *UsageLogHandler) Summary(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "hours must be a positive integer")
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := h.service.Summary(c.Request.Context(), since)
	if err != nil {
		log.WithError(err).Error("api: summarize usage logs failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to summarize usage logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "data": rows})
}
