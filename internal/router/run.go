package router

import (
	"context"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	log "github.com/sirupsen/logrus"
)

// routeRun 单次 Route 调用的状态
type routeRun struct {
	*Router
	requestID string
	prompt    string
	opts      Options
}

// execute 依次尝试供应商
func (run *routeRun) execute(ctx context.Context, providers []models.Provider) (*Result, error) {
	for i := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := &providers[i]
		if run.skip(ctx, p) {
			continue
		}

		result, err := run.tryProvider(ctx, p)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		if i+1 < len(providers) {
			run.recordFallback(ctx, p, &providers[i+1])
		}
	}

	log.WithField("request_id", run.requestID).Warn("router: all providers failed")
	return nil, ErrAllProvidersFailed
}

// skip 检查每日配额与会话配额，超限时写跳过日志
func (run *routeRun) skip(ctx context.Context, p *models.Provider) bool {
	if limit := p.EffectiveDailyLimit(run.defaultDailyLimit); p.UsageCount >= limit {
		run.recordSkip(ctx, p, models.FallbackReasonDailyLimit)
		return true
	}

	if run.opts.SessionProviderLimit == nil {
		return false
	}
	count, err := run.opts.Sessions.Count(ctx, p.ID)
	if err != nil {
		// 计数不可用时不阻止调用
		log.WithError(err).WithField("provider", p.ProviderName).Warn("router: session count unavailable")
		return false
	}
	if count >= *run.opts.SessionProviderLimit {
		run.recordSkip(ctx, p, models.FallbackReasonSessionLimit)
		return true
	}
	return false
}

// tryProvider 按重试次数调用同一个供应商
// 全部失败时返回 (nil, nil)；只有调用方取消时返回错误
func (run *routeRun) tryProvider(ctx context.Context, p *models.Provider) (*Result, error) {
	for n := 1; n <= run.opts.MaxRetriesPerProvider; n++ {
		attempt := run.caller.Call(ctx, p, run.prompt, run.opts.Timeout)
		run.recordAttempt(ctx, p, attempt)

		if attempt.OK() {
			run.onSuccess(ctx, p)
			return &Result{
				RequestID:      run.requestID,
				Provider:       p.ProviderName,
				Model:          attempt.Model,
				Text:           attempt.Text,
				ResponseTimeMs: attempt.Elapsed.Milliseconds(),
			}, nil
		}

		run.observe(p, stats.OutcomeFailure)
		log.WithError(attempt.Err).WithFields(log.Fields{
			"request_id": run.requestID,
			"provider":   p.ProviderName,
			"attempt":    n,
			"failure":    attempt.Failure,
		}).Info("router: attempt failed")

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// onSuccess 累加持久化用量与会话计数，写入失败只记录警告
// 调用已经成功，计数写入不受调用方取消影响
func (run *routeRun) onSuccess(ctx context.Context, p *models.Provider) {
	run.observe(p, stats.OutcomeSuccess)
	ctx = context.WithoutCancel(ctx)

	if err := run.providers.IncrementUsage(ctx, p.ID); err != nil {
		log.WithError(err).WithField("provider", p.ProviderName).Warn("router: failed to increment usage_count")
	}
	if run.opts.SessionProviderLimit != nil {
		if _, err := run.opts.Sessions.Increment(ctx, p.ID); err != nil {
			log.WithError(err).WithField("provider", p.ProviderName).Warn("router: failed to increment session count")
		}
	}
}

func (run *routeRun) recordAttempt(ctx context.Context, p *models.Provider, a *upstream.Attempt) {
	run.recorder.Record(context.WithoutCancel(ctx), &models.UsageLog{
		RequestID:      run.requestID,
		ProviderName:   p.ProviderName,
		Endpoint:       a.Endpoint,
		StatusCode:     a.StatusCode,
		ResponseTime:   a.Elapsed.Seconds(),
		ResponseTimeMs: a.Elapsed.Milliseconds(),
		ModelName:      a.Model,
		Prompt:         run.prompt,
		Answer:         a.Text,
	})
}

func (run *routeRun) recordSkip(ctx context.Context, p *models.Provider, reason string) {
	run.observe(p, stats.OutcomeSkip)
	log.WithFields(log.Fields{
		"request_id": run.requestID,
		"provider":   p.ProviderName,
		"reason":     reason,
	}).Info("router: provider skipped")

	_, target := upstream.TargetFor(p)
	run.recorder.Record(context.WithoutCancel(ctx), &models.UsageLog{
		RequestID:      run.requestID,
		ProviderName:   p.ProviderName,
		Endpoint:       models.EndpointQuota,
		StatusCode:     models.StatusQuotaSkipped,
		ModelName:      target.Model,
		Prompt:         run.prompt,
		FallbackReason: &reason,
	})
}

func (run *routeRun) recordFallback(ctx context.Context, from, to *models.Provider) {
	run.observe(from, stats.OutcomeFallback)
	reason := from.ProviderName + " failure → " + to.ProviderName

	_, target := upstream.TargetFor(from)
	run.recorder.Record(context.WithoutCancel(ctx), &models.UsageLog{
		RequestID:      run.requestID,
		ProviderName:   from.ProviderName,
		Endpoint:       models.EndpointFallback,
		StatusCode:     models.StatusFallback,
		ModelName:      target.Model,
		Prompt:         run.prompt,
		FallbackReason: &reason,
	})
}

func (run *routeRun) observe(p *models.Provider, outcome stats.Outcome) {
	if run.counter != nil {
		run.counter.Observe(p.ProviderName, outcome)
	}
}
