package models

import "time"

// UsageLog 供应商调用日志
// 每次尝试、跳过、故障转移都追加一行，写入后不再修改
type UsageLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RequestID      string    `gorm:"column:request_id;type:varchar(36);index" json:"request_id"`
	ProviderName   string    `gorm:"column:provider_name;type:varchar(100);not null;index" json:"provider_name"`
	Endpoint       string    `gorm:"type:varchar(100);not null" json:"endpoint"`
	StatusCode     int       `gorm:"column:status_code;not null" json:"status_code"`
	ResponseTime   float64   `gorm:"column:response_time" json:"response_time"` // 秒
	ResponseTimeMs int64     `gorm:"column:response_time_ms" json:"response_time_ms"`
	ModelName      string    `gorm:"column:model_name;type:varchar(100)" json:"model_name"`
	Prompt         string    `gorm:"type:text" json:"prompt"`
	Answer         string    `gorm:"type:text" json:"answer"`
	FallbackReason *string   `gorm:"column:fallback_reason;type:text" json:"fallback_reason,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (UsageLog) TableName() string {
	return "ai_usage_logs"
}

// 跳过原因
const (
	FallbackReasonDailyLimit   = "daily_limit_reached"
	FallbackReasonSessionLimit = "session_limit_reached"
)

// 状态码标记
const (
	StatusTimeout        = 408 // 单次请求超时
	StatusTransportError = 599 // 网络或其他传输错误
	StatusQuotaSkipped   = 429 // 因额度跳过，未发起请求
	StatusFallback       = 0   // 故障转移记录
)

// 端点标签
const (
	EndpointQuota    = "quota"
	EndpointFallback = "fallback"
)
