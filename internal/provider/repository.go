package provider

import (
	"context"
	"errors"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrProviderNotFound 供应商不存在
	ErrProviderNotFound = errors.New("provider not found")
	// ErrProviderNameExists 供应商名称已存在
	ErrProviderNameExists = errors.New("provider name already exists")
)

// Repository 供应商数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 创建供应商
func (r *Repository) Create(ctx context.Context, provider *models.Provider) error {
	// 使用 Select 明确指定要保存的字段，包括零值字段
	return r.db.WithContext(ctx).Select(
		"ProviderName", "APIKey", "BaseURL", "Status", "ModelName", "Temperature",
		"MaxTokens", "Priority", "UsageCount", "DailyLimit", "Family", "CreatedAt", "UpdatedAt",
	).Create(provider).Error
}

// FindByID 根据 ID 查找供应商
func (r *Repository) FindByID(ctx context.Context, id uint) (*models.Provider, error) {
	var provider models.Provider
	err := r.db.WithContext(ctx).First(&provider, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// FindAll 查找所有供应商（分页）
func (r *Repository) FindAll(ctx context.Context, page, pageSize int) ([]*models.Provider, int64, error) {
	var providers []*models.Provider
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Provider{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).Order("id").Offset(offset).Limit(pageSize).Find(&providers).Error
	if err != nil {
		return nil, 0, err
	}

	return providers, total, nil
}

// FindActive 查找所有 status = active 的供应商，按 id 排序保证稳定
func (r *Repository) FindActive(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ProviderStatusActive).
		Order("id").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// Update 更新供应商的可编辑字段
// usage_count 与 last_tested 由路由器原子维护，这里不写入
func (r *Repository) Update(ctx context.Context, provider *models.Provider) error {
	result := r.db.WithContext(ctx).Model(provider).Select(
		"ProviderName", "APIKey", "BaseURL", "Status", "ModelName", "Temperature",
		"MaxTokens", "Priority", "DailyLimit", "Family", "UpdatedAt",
	).Updates(provider)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// IncrementUsage usage_count 原子加一并刷新 last_tested
func (r *Repository) IncrementUsage(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Provider{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + ?", 1),
			"last_tested": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// ResetUsage 将 usage_count 清零（外部每日重置）
func (r *Repository) ResetUsage(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Provider{}).
		Where("id = ?", id).
		Update("usage_count", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// ResetAllUsage 将所有供应商的 usage_count 清零，返回受影响行数
func (r *Repository) ResetAllUsage(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Provider{}).
		Where("usage_count <> ?", 0).
		Update("usage_count", 0)
	return result.RowsAffected, result.Error
}

// TouchLastTested 仅更新 last_tested
func (r *Repository) TouchLastTested(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Provider{}).
		Where("id = ?", id).
		Update("last_tested", at).Error
}

// Delete 删除供应商（硬删除）
func (r *Repository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Provider{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// CheckNameExists 检查名称是否存在（排除指定 ID）
func (r *Repository) CheckNameExists(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Provider{}).Where("provider_name = ?", name)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
