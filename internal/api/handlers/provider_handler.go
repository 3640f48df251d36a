package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/Mieluoxxx/Siriusx-Router/internal/provider"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ProviderHandler 供应商 HTTP 处理器
type ProviderHandler struct {
	service *provider.Service
	tester  *provider.Tester
}

// NewProviderHandler 创建 ProviderHandler 实例
func NewProviderHandler(service *provider.Service, tester *provider.Tester) *ProviderHandler {
	return &ProviderHandler{service: service, tester: tester}
}

// CreateProvider 创建供应商
// @Summary 创建供应商
// @Tags providers
// @Accept json
// @Produce json
// @Param provider body provider.CreateProviderRequest true "供应商信息"
// @Success 201 {object} provider.ProviderResponse
// @Failure 400 {object} provider.ErrorResponse
// @Failure 409 {object} provider.ErrorResponse
// @Router /api/providers [post]
func (h *ProviderHandler) CreateProvider(c *gin.Context) {
	var req provider.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	prov, err := h.service.CreateProvider(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to create provider")
		return
	}

	c.JSON(http.StatusCreated, h.service.Response(prov))
}

// GetProvider 获取单个供应商
// @Summary 获取单个供应商
// @Tags providers
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {object} provider.ProviderResponse
// @Failure 404 {object} provider.ErrorResponse
// @Router /api/providers/{id} [get]
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	prov, err := h.service.GetProvider(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get provider")
		return
	}

	c.JSON(http.StatusOK, h.service.Response(prov))
}

// ListProviders 获取供应商列表
// @Summary 获取供应商列表
// @Tags providers
// @Produce json
// @Param page query int false "页码（默认 1）"
// @Param page_size query int false "每页数量（默认 10，最大 100）"
// @Success 200 {object} provider.ProviderListResponse
// @Router /api/providers [get]
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	providers, total, err := h.service.ListProviders(c.Request.Context(), page, pageSize)
	if err != nil {
		log.WithError(err).Error("api: list providers failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list providers")
		return
	}

	data := make([]provider.ProviderResponse, len(providers))
	for i, p := range providers {
		data[i] = h.service.Response(p)
	}

	c.JSON(http.StatusOK, provider.ProviderListResponse{
		Data: data,
		Pagination: provider.PaginationMeta{
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

// UpdateProvider 更新供应商
// @Summary 更新供应商
// @Tags providers
// @Accept json
// @Produce json
// @Param id path int true "供应商 ID"
// @Param provider body provider.UpdateProviderRequest true "更新信息"
// @Success 200 {object} provider.ProviderResponse
// @Failure 400 {object} provider.ErrorResponse
// @Failure 404 {object} provider.ErrorResponse
// @Failure 409 {object} provider.ErrorResponse
// @Router /api/providers/{id} [put]
func (h *ProviderHandler) UpdateProvider(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req provider.UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
		return
	}

	prov, err := h.service.UpdateProvider(c.Request.Context(), id, req)
	if err != nil {
		h.handleServiceError(c, err, "Failed to update provider")
		return
	}

	c.JSON(http.StatusOK, h.service.Response(prov))
}

// DeleteProvider 删除供应商
// @Summary 删除供应商
// @Tags providers
// @Param id path int true "供应商 ID"
// @Success 204 "No Content"
// @Failure 404 {object} provider.ErrorResponse
// @Router /api/providers/{id} [delete]
func (h *ProviderHandler) DeleteProvider(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteProvider(c.Request.Context(), id); err != nil {
		h.handleServiceError(c, err, "Failed to delete provider")
		return
	}

	c.Status(http.StatusNoContent)
}

// TestProvider 手动触发一次连通性测试
// @Summary 测试供应商连通性
// @Tags providers
// @Produce json
// @Param id path int true "供应商 ID"
// @Success 200 {object} provider.TestResult
// @Failure 404 {object} provider.ErrorResponse
// @Router /api/providers/{id}/test [post]
func (h *ProviderHandler) TestProvider(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.tester.Test(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to test provider")
		return
	}

	entry := log.WithFields(log.Fields{
		"provider_id":      id,
		"healthy":          result.Healthy,
		"status_code":      result.StatusCode,
		"response_time_ms": result.ResponseTimeMs,
	})
	if result.Healthy {
		entry.Info("api: provider test succeeded")
	} else {
		entry.WithField("error", result.Error).Warn("api: provider test failed")
	}

	c.JSON(http.StatusOK, result)
}

// ResetUsage 清零 usage_count（每日重置）
// @Summary 重置供应商用量
// @Tags providers
// @Param id path int true "供应商 ID"
// @Success 200 {object} provider.ProviderResponse
// @Failure 404 {object} provider.ErrorResponse
// @Router /api/providers/{id}/reset-usage [post]
func (h *ProviderHandler) ResetUsage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.service.ResetUsage(ctx, id); err != nil {
		h.handleServiceError(c, err, "Failed to reset usage")
		return
	}

	prov, err := h.service.GetProvider(ctx, id)
	if err != nil {
		h.handleServiceError(c, err, "Failed to get provider")
		return
	}
	c.JSON(http.StatusOK, h.service.Response(prov))
}

// ResetAllUsage 清零所有供应商的 usage_count
// @Summary 重置全部供应商用量
// @Tags providers
// @Success 200 {object} map[string]int64
// @Router /api/providers/reset-usage [post]
func (h *ProviderHandler) ResetAllUsage(c *gin.Context) {
	affected, err := h.service.ResetAllUsage(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("api: reset usage failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset usage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": affected})
}

// handleServiceError 将 Service 错误映射为 HTTP 状态码
func (h *ProviderHandler) handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, provider.ErrProviderNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Provider not found")
	case errors.Is(err, provider.ErrProviderNameExists):
		respondError(c, http.StatusConflict, "NAME_CONFLICT", "Provider name already exists")
	case errors.Is(err, provider.ErrInvalidInput), errors.Is(err, provider.ErrInvalidURL):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		log.WithError(err).Error("api: " + fallback)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
