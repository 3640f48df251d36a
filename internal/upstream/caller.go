package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/go-resty/resty/v2"
)

// Attempt 单次调用结果
// 调用失败不以 error 返回给路由器，而是记录在 Attempt 中
type Attempt struct {
	Family     Family
	Endpoint   string
	Model      string
	StatusCode int // 已换算为日志状态标记
	Elapsed    time.Duration
	Text       string
	Failure    FailureType
	Err        error
}

// OK 是否成功取得文本
func (a *Attempt) OK() bool {
	return a.Failure == NoFailure && a.Err == nil
}

// Caller 向上游供应商发起单次生成请求
type Caller struct {
	http *resty.Client
}

// NewCaller 创建 Caller
// 超时由每次调用的 context 控制，resty 不做自动重试
func NewCaller() *Caller {
	return &Caller{
		http: resty.New().
			SetRetryCount(0).
			SetHeader("User-Agent", "Siriusx-Router/1.0"),
	}
}

// NewCallerWithClient 使用指定的 resty 客户端（测试或自定义 Transport）
func NewCallerWithClient(client *resty.Client) *Caller {
	return &Caller{http: client}
}

// TargetFor 由供应商配置构造调用目标
func TargetFor(p *models.Provider) (*Spec, Target) {
	spec := SpecFor(ResolveFamily(p.Family, p.BaseURL, p.ProviderName))
	target := spec.ResolveTarget(Target{
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		Model:       p.ModelName,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	return spec, target
}

// Call 发起一次调用，超过 timeout 时中止请求
func (c *Caller) Call(ctx context.Context, p *models.Provider, prompt string, timeout time.Duration) *Attempt {
	spec, target := TargetFor(p)
	attempt := &Attempt{
		Family:   spec.Family,
		Endpoint: spec.Endpoint,
		Model:    target.Model,
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := spec.build(target, prompt)
	start := time.Now()

	resp, err := c.http.R().
		SetContext(callCtx).
		SetHeaders(req.Headers).
		SetQueryParams(req.Query).
		SetBody(req.Body).
		Post(req.URL)
	attempt.Elapsed = time.Since(start)

	if err != nil {
		attempt.Failure = classifyError(err)
		attempt.StatusCode = StatusMarker(attempt.Failure, 0)
		attempt.Err = err
		return attempt
	}

	status := resp.StatusCode()
	attempt.StatusCode = status
	if failure := classifyStatus(status); failure != NoFailure {
		attempt.Failure = failure
		attempt.Err = fmt.Errorf("%s returned HTTP %d", spec.Family, status)
		return attempt
	}

	text, ok := spec.ExtractText(resp.Body())
	if !ok {
		attempt.Failure = BadResponse
		attempt.Err = fmt.Errorf("%s response has no text field", spec.Family)
		return attempt
	}

	attempt.Text = text
	return attempt
}
