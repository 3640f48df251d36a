package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/crypto"
	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidURL 无效 URL
	ErrInvalidURL = errors.New("invalid URL")
)

// Service 供应商业务逻辑层
// 同时作为路由器读取可用供应商、累加用量的存储
type Service struct {
	repo              *Repository
	box               *crypto.SecretBox // 为 nil 时 API Key 明文存储
	defaultDailyLimit int
}

// NewService 创建 Service 实例
func NewService(repo *Repository, box *crypto.SecretBox, defaultDailyLimit int) *Service {
	if defaultDailyLimit <= 0 {
		defaultDailyLimit = models.DefaultDailyLimit
	}
	return &Service{
		repo:              repo,
		box:               box,
		defaultDailyLimit: defaultDailyLimit,
	}
}

// DefaultDailyLimit 未配置 daily_limit 时的上限
func (s *Service) DefaultDailyLimit() int {
	return s.defaultDailyLimit
}

// FamilyOf 返回供应商的生效协议族
func FamilyOf(p *models.Provider) upstream.Family {
	return upstream.ResolveFamily(p.Family, p.BaseURL, p.ProviderName)
}

// Response 转换为脱敏响应
func (s *Service) Response(p *models.Provider) ProviderResponse {
	return ToProviderResponse(p, string(FamilyOf(p)), s.defaultDailyLimit)
}

// CreateProvider 创建供应商
func (s *Service) CreateProvider(ctx context.Context, req CreateProviderRequest) (*models.Provider, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.repo.CheckNameExists(ctx, req.ProviderName, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrProviderNameExists
	}

	provider := &models.Provider{
		ProviderName: strings.TrimSpace(req.ProviderName),
		BaseURL:      strings.TrimSpace(req.BaseURL),
		APIKey:       req.APIKey,
		Status:       models.ProviderStatusActive,
		ModelName:    strings.TrimSpace(req.ModelName),
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Priority:     req.Priority,
		DailyLimit:   req.DailyLimit,
		Family:       strings.ToLower(strings.TrimSpace(req.Family)),
	}
	if req.Status != "" {
		provider.Status = req.Status
	}

	sealed, err := s.seal(req.APIKey)
	if err != nil {
		return nil, err
	}
	provider.APIKey = sealed

	if err := s.repo.Create(ctx, provider); err != nil {
		return nil, err
	}

	// 返回前恢复明文 API Key（Handler 会负责脱敏）
	provider.APIKey = req.APIKey
	return provider, nil
}

// GetProvider 获取单个供应商（API Key 已解密）
func (s *Service) GetProvider(ctx context.Context, id uint) (*models.Provider, error) {
	provider, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders 获取供应商列表（分页）
func (s *Service) ListProviders(ctx context.Context, page, pageSize int) ([]*models.Provider, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	providers, total, err := s.repo.FindAll(ctx, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	for _, p := range providers {
		if err := s.open(p); err != nil {
			return nil, 0, err
		}
	}
	return providers, total, nil
}

// ListActive 读取全部 active 供应商（未排序，API Key 已解密）
// 无法解密凭据的供应商无法调用，记录警告后排除
func (s *Service) ListActive(ctx context.Context) ([]models.Provider, error) {
	providers, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}

	out := providers[:0]
	for i := range providers {
		if err := s.open(&providers[i]); err != nil {
			log.WithError(err).WithField("provider", providers[i].ProviderName).
				Warn("provider: cannot decrypt api key, excluded from routing")
			continue
		}
		out = append(out, providers[i])
	}
	return out, nil
}

// IncrementUsage 成功调用后 usage_count 加一
func (s *Service) IncrementUsage(ctx context.Context, id uint) error {
	return s.repo.IncrementUsage(ctx, id, time.Now())
}

// ResetUsage 清零单个供应商的 usage_count
func (s *Service) ResetUsage(ctx context.Context, id uint) error {
	return s.repo.ResetUsage(ctx, id)
}

// ResetAllUsage 清零所有供应商的 usage_count
func (s *Service) ResetAllUsage(ctx context.Context) (int64, error) {
	return s.repo.ResetAllUsage(ctx)
}

// MarkTested 连通性测试成功后刷新 last_tested
func (s *Service) MarkTested(ctx context.Context, id uint) error {
	return s.repo.TouchLastTested(ctx, id, time.Now())
}

// UpdateProvider 更新供应商
func (s *Service) UpdateProvider(ctx context.Context, id uint, req UpdateProviderRequest) (*models.Provider, error) {
	if err := s.validateUpdateRequest(req); err != nil {
		return nil, err
	}

	provider, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ProviderName != nil && *req.ProviderName != provider.ProviderName {
		exists, err := s.repo.CheckNameExists(ctx, *req.ProviderName, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrProviderNameExists
		}
		provider.ProviderName = strings.TrimSpace(*req.ProviderName)
	}

	if req.BaseURL != nil {
		provider.BaseURL = strings.TrimSpace(*req.BaseURL)
	}
	if req.Status != nil {
		provider.Status = *req.Status
	}
	if req.ModelName != nil {
		provider.ModelName = strings.TrimSpace(*req.ModelName)
	}
	if req.Temperature != nil {
		provider.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		provider.MaxTokens = req.MaxTokens
	}
	if req.Priority != nil {
		provider.Priority = req.Priority
	}
	if req.DailyLimit != nil {
		provider.DailyLimit = req.DailyLimit
	}
	if req.Family != nil {
		provider.Family = strings.ToLower(strings.TrimSpace(*req.Family))
	}
	if req.APIKey != nil {
		sealed, err := s.seal(*req.APIKey)
		if err != nil {
			return nil, err
		}
		provider.APIKey = sealed
	}

	if err := requireBaseURL(provider.Family, provider.BaseURL, provider.ProviderName); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, provider); err != nil {
		return nil, err
	}

	// 重新读取，带回路由器在此期间累加的 usage_count
	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.open(updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProvider 删除供应商（硬删除）
func (s *Service) DeleteProvider(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) seal(apiKey string) (string, error) {
	if s.box == nil {
		return apiKey, nil
	}
	sealed, err := s.box.Seal(apiKey)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt API key: %w", err)
	}
	return sealed, nil
}

// open 就地解密 API Key；未启用加密时保留原值
func (s *Service) open(p *models.Provider) error {
	if !crypto.IsSealed(p.APIKey) {
		return nil
	}
	if s.box == nil {
		return fmt.Errorf("provider %q has an encrypted api key but no encryption key is configured", p.ProviderName)
	}
	plain, err := s.box.Open(p.APIKey)
	if err != nil {
		return fmt.Errorf("failed to decrypt API key: %w", err)
	}
	p.APIKey = plain
	return nil
}

// validateCreateRequest 验证创建请求
func (s *Service) validateCreateRequest(req CreateProviderRequest) error {
	if strings.TrimSpace(req.ProviderName) == "" {
		return fmt.Errorf("%w: provider_name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrInvalidInput)
	}
	if req.BaseURL != "" {
		if err := validateURL(req.BaseURL); err != nil {
			return err
		}
	}
	if req.Status != "" {
		if err := validateStatus(req.Status); err != nil {
			return err
		}
	}
	if req.Family != "" {
		if _, ok := upstream.ParseFamily(req.Family); !ok {
			return fmt.Errorf("%w: unknown family %q", ErrInvalidInput, req.Family)
		}
	}
	if req.DailyLimit != nil && *req.DailyLimit <= 0 {
		return fmt.Errorf("%w: daily_limit must be positive", ErrInvalidInput)
	}
	return requireBaseURL(req.Family, req.BaseURL, req.ProviderName)
}

// requireBaseURL generic 协议族没有默认地址，必须显式配置 base_url
func requireBaseURL(family, baseURL, name string) error {
	if strings.TrimSpace(baseURL) != "" {
		return nil
	}
	if upstream.ResolveFamily(family, "", name) == upstream.FamilyGeneric {
		return fmt.Errorf("%w: base_url is required for generic providers", ErrInvalidInput)
	}
	return nil
}

// validateUpdateRequest 验证更新请求
func (s *Service) validateUpdateRequest(req UpdateProviderRequest) error {
	if req.ProviderName != nil && strings.TrimSpace(*req.ProviderName) == "" {
		return fmt.Errorf("%w: provider_name cannot be empty", ErrInvalidInput)
	}
	if req.APIKey != nil && strings.TrimSpace(*req.APIKey) == "" {
		return fmt.Errorf("%w: api_key cannot be empty", ErrInvalidInput)
	}
	if req.BaseURL != nil && *req.BaseURL != "" {
		if err := validateURL(*req.BaseURL); err != nil {
			return err
		}
	}
	if req.Status != nil {
		if err := validateStatus(*req.Status); err != nil {
			return err
		}
	}
	if req.Family != nil && *req.Family != "" {
		if _, ok := upstream.ParseFamily(*req.Family); !ok {
			return fmt.Errorf("%w: unknown family %q", ErrInvalidInput, *req.Family)
		}
	}
	if req.DailyLimit != nil && *req.DailyLimit <= 0 {
		return fmt.Errorf("%w: daily_limit must be positive", ErrInvalidInput)
	}
	return nil
}

func validateStatus(status string) error {
	if status != models.ProviderStatusActive && status != models.ProviderStatusInactive {
		return fmt.Errorf("%w: status must be active or inactive", ErrInvalidInput)
	}
	return nil
}

// validateURL 验证 URL 格式
func validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: URL must be http or https", ErrInvalidURL)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrInvalidURL)
	}
	return nil
}
