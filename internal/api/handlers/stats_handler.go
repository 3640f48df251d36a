package handlers

import (
	"net/http"

	"github.com/Mieluoxxx/Siriusx-Router/internal/router"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StatsHandler 统计信息处理器
type StatsHandler struct {
	requests *stats.RequestCounter
	routes   *stats.RouteCounter
	router   *router.Router
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(requests *stats.RequestCounter, routes *stats.RouteCounter, r *router.Router) *StatsHandler {
	return &StatsHandler{requests: requests, routes: routes, router: r}
}

// SystemStats 系统统计信息响应
type SystemStats struct {
	Requests stats.RequestStats `json:"requests"`
	Routes   stats.RouteStats   `json:"routes"`
	// SessionUsage 当前运行周期内各供应商的成功次数，key 为供应商 ID
	SessionUsage map[uint]int `json:"session_usage"`
}

// GetStats 获取系统统计信息
// @Summary 获取系统统计信息
// @Tags Stats
// @Produce json
// @Success 200 {object} SystemStats
// @Router /api/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	out := SystemStats{
		Requests: h.requests.GetStats(),
		Routes:   h.routes.Snapshot(),
	}

	usage, err := h.router.Sessions().Snapshot(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("api: session snapshot unavailable")
		usage = map[uint]int{}
	}
	out.SessionUsage = usage

	c.JSON(http.StatusOK, out)
}
