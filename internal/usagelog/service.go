package usagelog

import (
	"context"
	"fmt"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Recorder 调用日志写入接口
// Record 尽力写入，失败不向调用方传播
type Recorder interface {
	Record(ctx context.Context, entry *models.UsageLog)
}

// Service 调用日志服务
type Service struct {
	db *gorm.DB
}

// NewService 创建调用日志服务实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Append 追加一条日志
func (s *Service) Append(ctx context.Context, entry *models.UsageLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("save usage log: %w", err)
	}
	return nil
}

// Record 在独立的错误边界内追加日志
// 写入失败或 panic 只输出 debug 日志，不影响路由决策
func (s *Service) Record(ctx context.Context, entry *models.UsageLog) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("provider", entry.ProviderName).Debugf("usage log: write panicked: %v", r)
		}
	}()

	if err := s.Append(ctx, entry); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"provider": entry.ProviderName,
			"endpoint": entry.Endpoint,
		}).Debug("usage log: write failed")
	}
}

// Query 日志查询条件
type Query struct {
	ProviderName string
	RequestID    string
	Limit        int
}

// Recent 按时间倒序查询日志（管理界面使用，路由器不读取）
func (s *Service) Recent(ctx context.Context, q Query) ([]models.UsageLog, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	tx := s.db.WithContext(ctx).Model(&models.UsageLog{})
	if q.ProviderName != "" {
		tx = tx.Where("provider_name = ?", q.ProviderName)
	}
	if q.RequestID != "" {
		tx = tx.Where("request_id = ?", q.RequestID)
	}

	var entries []models.UsageLog
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query usage logs: %w", err)
	}
	return entries, nil
}

// ProviderSummary 单个供应商的日志汇总
type ProviderSummary struct {
	ProviderName string `json:"provider_name"`
	Successes    int64  `json:"successes"`
	Failures     int64  `json:"failures"`
	Skips        int64  `json:"skips"`
	Fallbacks    int64  `json:"fallbacks"`
}

// Summary 按供应商汇总成功、失败、跳过与故障转移次数
func (s *Service) Summary(ctx context.Context, since time.Time) ([]ProviderSummary, error) {
	var rows []ProviderSummary
	err := s.db.WithContext(ctx).Model(&models.UsageLog{}).
		Select(`provider_name,
			SUM(CASE WHEN status_code >= 200 AND status_code < 300 AND answer <> '' THEN 1 ELSE 0 END) AS successes,
			SUM(CASE WHEN endpoint NOT IN (?, ?) AND NOT (status_code >= 200 AND status_code < 300 AND answer <> '') THEN 1 ELSE 0 END) AS failures,
			SUM(CASE WHEN endpoint = ? THEN 1 ELSE 0 END) AS skips,
			SUM(CASE WHEN endpoint = ? THEN 1 ELSE 0 END) AS fallbacks`,
			models.EndpointQuota, models.EndpointFallback, models.EndpointQuota, models.EndpointFallback).
		Where("created_at >= ?", since).
		Group("provider_name").
		Order("provider_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize usage logs: %w", err)
	}
	return rows, nil
}
