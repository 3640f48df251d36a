package models

import "time"

// Provider 供应商配置
// 由外部管理界面维护，路由器只读取（成功调用后仅更新 usage_count 与 last_tested）
type Provider struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ProviderName string     `gorm:"column:provider_name;type:varchar(100);not null" json:"provider_name"`
	APIKey       string     `gorm:"column:api_key;type:text;not null" json:"api_key"` // 加密存储
	BaseURL      string     `gorm:"column:base_url;type:varchar(255);not null" json:"base_url"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active';index" json:"status"` // active/inactive
	ModelName    string     `gorm:"column:model_name;type:varchar(100)" json:"model_name,omitempty"`
	Temperature  *float64   `json:"temperature,omitempty"`
	MaxTokens    *int       `gorm:"column:max_tokens" json:"max_tokens,omitempty"`
	Priority     *int       `json:"priority,omitempty"` // 数字越小优先级越高，为空视为 0
	UsageCount   int        `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	DailyLimit   *int       `gorm:"column:daily_limit" json:"daily_limit,omitempty"`
	Family       string     `gorm:"type:varchar(20)" json:"family,omitempty"` // 显式指定协议族，为空时自动识别
	LastTested   *time.Time `gorm:"column:last_tested" json:"last_tested,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Provider) TableName() string {
	return "ai_providers"
}

// 供应商状态
const (
	ProviderStatusActive   = "active"
	ProviderStatusInactive = "inactive"
)

// DefaultDailyLimit 未配置 daily_limit 时使用的每日上限
const DefaultDailyLimit = 50

// EffectivePriority 返回排序用的优先级
func (p *Provider) EffectivePriority() int {
	if p.Priority == nil {
		return 0
	}
	return *p.Priority
}

// EffectiveDailyLimit 返回生效的每日上限
// daily_limit 为空或非正数时回退到 fallback
func (p *Provider) EffectiveDailyLimit(fallback int) int {
	if p.DailyLimit == nil || *p.DailyLimit <= 0 {
		return fallback
	}
	return *p.DailyLimit
}

// IsActive 是否处于可用状态
func (p *Provider) IsActive() bool {
	return p.Status == ProviderStatusActive
}
