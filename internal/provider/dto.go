package provider

import (
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
)

// CreateProviderRequest 创建供应商请求
type CreateProviderRequest struct {
	ProviderName string   `json:"provider_name" binding:"required"`
	BaseURL      string   `json:"base_url"`
	APIKey       string   `json:"api_key" binding:"required"`
	Status       string   `json:"status" binding:"omitempty,oneof=active inactive"`
	ModelName    string   `json:"model_name"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens    *int     `json:"max_tokens" binding:"omitempty,min=1"`
	Priority     *int     `json:"priority"`
	DailyLimit   *int     `json:"daily_limit" binding:"omitempty,min=1"`
	Family       string   `json:"family" binding:"omitempty,oneof=gemini openai groq generic"`
}

// UpdateProviderRequest 更新供应商请求
type UpdateProviderRequest struct {
	ProviderName *string  `json:"provider_name"`
	BaseURL      *string  `json:"base_url"`
	APIKey       *string  `json:"api_key"`
	Status       *string  `json:"status" binding:"omitempty,oneof=active inactive"`
	ModelName    *string  `json:"model_name"`
	Temperature  *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens    *int     `json:"max_tokens" binding:"omitempty,min=1"`
	Priority     *int     `json:"priority"`
	DailyLimit   *int     `json:"daily_limit" binding:"omitempty,min=1"`
	Family       *string  `json:"family" binding:"omitempty,oneof=gemini openai groq generic"`
}

// ProviderResponse 供应商响应（API Key 脱敏）
type ProviderResponse struct {
	ID           uint       `json:"id"`
	ProviderName string     `json:"provider_name"`
	BaseURL      string     `json:"base_url"`
	APIKey       string     `json:"api_key"` // 脱敏显示
	Status       string     `json:"status"`
	ModelName    string     `json:"model_name,omitempty"`
	Temperature  *float64   `json:"temperature,omitempty"`
	MaxTokens    *int       `json:"max_tokens,omitempty"`
	Priority     int        `json:"priority"`
	UsageCount   int        `json:"usage_count"`
	DailyLimit   int        `json:"daily_limit"`
	Family       string     `json:"family"`
	LastTested   *time.Time `json:"last_tested,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProviderListResponse 供应商列表响应（带分页）
type ProviderListResponse struct {
	Data       []ProviderResponse `json:"data"`
	Pagination PaginationMeta     `json:"pagination"`
}

// PaginationMeta 分页元数据
type PaginationMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// MaskAPIKey API Key 脱敏
// 格式: sk-****last4
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:3] + "****" + apiKey[len(apiKey)-4:]
}

// ToProviderResponse 转换为响应，family 与 daily_limit 为生效值
func ToProviderResponse(p *models.Provider, family string, defaultDailyLimit int) ProviderResponse {
	return ProviderResponse{
		ID:           p.ID,
		ProviderName: p.ProviderName,
		BaseURL:      p.BaseURL,
		APIKey:       MaskAPIKey(p.APIKey),
		Status:       p.Status,
		ModelName:    p.ModelName,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
		Priority:     p.EffectivePriority(),
		UsageCount:   p.UsageCount,
		DailyLimit:   p.EffectiveDailyLimit(defaultDailyLimit),
		Family:       family,
		LastTested:   p.LastTested,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}
