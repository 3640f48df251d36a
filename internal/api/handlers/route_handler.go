package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/Mieluoxxx/Siriusx-Router/internal/router"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RouteHandler 路由请求处理器
type RouteHandler struct {
	router   *router.Router
	provider *provider.Service
}

// NewRouteHandler 创建 RouteHandler
func NewRouteHandler(r *router.Router, service *provider.Service) *RouteHandler {
	return &RouteHandler{router: r, provider: service}
}

// RouteRequest 路由请求体
type RouteRequest struct {
	Prompt                string `json:"prompt"`
	TimeoutMs             int    `json:"timeout_ms" binding:"omitempty,min=1"`
	MaxRetriesPerProvider int    `json:"max_retries_per_provider" binding:"omitempty,min=1"`
	SessionProviderLimit  *int   `json:"session_provider_limit" binding:"omitempty,min=1"`
}

// Route 把提示词路由到第一个可用的供应商
// @Summary 路由文本生成请求
// @Tags route
// @Accept json
// @Produce json
// @Param request body RouteRequest true "提示词与路由参数"
// @Success 200 {object} router.Result
// @Failure 400 {object} provider.ErrorResponse
// @Failure 502 {object} provider.ErrorResponse
// @Failure 503 {object} provider.ErrorResponse
// @Router /api/route [post]
func (h *RouteHandler) Route(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	result, err := h.router.Route(c.Request.Context(), req.Prompt, router.Options{
		Timeout:               time.Duration(req.TimeoutMs) * time.Millisecond,
		MaxRetriesPerProvider: req.MaxRetriesPerProvider,
		SessionProviderLimit:  req.SessionProviderLimit,
	})
	if err != nil {
		switch {
		case errors.Is(err, router.ErrEmptyPrompt):
			respondError(c, http.StatusBadRequest, "EMPTY_PROMPT", err.Error())
		case errors.Is(err, router.ErrNoActiveProviders):
			respondError(c, http.StatusServiceUnavailable, "NO_ACTIVE_PROVIDERS", err.Error())
		case errors.Is(err, router.ErrAllProvidersFailed):
			respondError(c, http.StatusBadGateway, "ALL_PROVIDERS_FAILED", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// 客户端已断开
			c.Status(499)
		default:
			log.WithError(err).Error("api: route failed")
			respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to route request")
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ActiveProviders 按尝试顺序返回可用供应商
// @Summary 可用供应商（按路由顺序）
// @Tags route
// @Produce json
// @Success 200 {array} provider.ProviderResponse
// @Router /api/providers/active [get]
func (h *RouteHandler) ActiveProviders(c *gin.Context) {
	providers, err := h.router.ListActiveProviders(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("api: list active providers failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list active providers")
		return
	}

	data := make([]provider.ProviderResponse, len(providers))
	for i := range providers {
		data[i] = h.provider.Response(&providers[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}
