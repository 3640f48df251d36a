package provider

import (
	"context"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	log "github.com/sirupsen/logrus"
)

// probePrompt 连通性测试使用的固定提示词
const probePrompt = "Reply with the single word: pong"

// Caller 单次上游调用
type Caller interface {
	Call(ctx context.Context, p *models.Provider, prompt string, timeout time.Duration) *upstream.Attempt
}

// Tester 供应商连通性测试
// 通过与路由相同的协议族发起一次真实调用，不计入 usage_count，也不写调用日志
type Tester struct {
	service *Service
	caller  Caller
	timeout time.Duration
}

// NewTester 创建连通性测试器
func NewTester(service *Service, caller Caller, timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Tester{service: service, caller: caller, timeout: timeout}
}

// TestResult 连通性测试结果
type TestResult struct {
	Healthy        bool      `json:"healthy"`
	Family         string    `json:"family"`
	Model          string    `json:"model"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	StatusCode     int       `json:"status_code,omitempty"`
	Error          string    `json:"error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Test 测试指定供应商，成功时刷新 last_tested
func (t *Tester) Test(ctx context.Context, id uint) (*TestResult, error) {
	p, err := t.service.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}

	checkedAt := time.Now()
	attempt := t.caller.Call(ctx, p, probePrompt, t.timeout)

	result := &TestResult{
		Healthy:        attempt.OK(),
		Family:         string(attempt.Family),
		Model:          attempt.Model,
		ResponseTimeMs: attempt.Elapsed.Milliseconds(),
		StatusCode:     attempt.StatusCode,
		CheckedAt:      checkedAt,
	}
	if attempt.Err != nil {
		result.Error = attempt.Err.Error()
	}

	if result.Healthy {
		if err := t.service.MarkTested(ctx, id); err != nil {
			log.WithError(err).WithField("provider", p.ProviderName).Warn("provider: failed to update last_tested")
		}
	}
	return result, nil
}
