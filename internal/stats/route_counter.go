package stats

import (
	"sort"
	"sync"
	"time"
)

// Outcome 一次路由调用中单个供应商的结果
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"  // 单次尝试失败
	OutcomeSkip     Outcome = "skip"     // 配额跳过
	OutcomeFallback Outcome = "fallback" // 转移到下一个供应商
)

// RouteCounter 路由结果计数
// 进程内统计，重启清零；QPS 复用 RequestCounter 的时间窗口
type RouteCounter struct {
	calls *RequestCounter

	mu         sync.Mutex
	successes  int64
	exhausted  int64
	byProvider map[string]*ProviderCounts
}

// ProviderCounts 单个供应商的结果计数
type ProviderCounts struct {
	ProviderName string `json:"provider_name"`
	Successes    int64  `json:"successes"`
	Failures     int64  `json:"failures"`
	Skips        int64  `json:"skips"`
	Fallbacks    int64  `json:"fallbacks"`
}

// RouteStats 路由统计快照
type RouteStats struct {
	TotalCalls int64            `json:"total_calls"`
	Successes  int64            `json:"successes"`
	Failures   int64            `json:"failures"` // 所有供应商都失败的调用数
	CurrentQPS float64          `json:"current_qps"`
	Providers  []ProviderCounts `json:"providers"`
}

// NewRouteCounter 创建路由计数器
func NewRouteCounter(window time.Duration) *RouteCounter {
	return &RouteCounter{
		calls:      NewRequestCounter(window),
		byProvider: make(map[string]*ProviderCounts),
	}
}

// CallStarted 记录一次 Route 调用
func (c *RouteCounter) CallStarted() {
	c.calls.Increment()
}

// CallFinished 记录一次 Route 调用的最终结果
func (c *RouteCounter) CallFinished(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.successes++
	} else {
		c.exhausted++
	}
}

// Observe 记录单个供应商的结果
func (c *RouteCounter) Observe(providerName string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pc, ok := c.byProvider[providerName]
	if !ok {
		pc = &ProviderCounts{ProviderName: providerName}
		c.byProvider[providerName] = pc
	}
	switch outcome {
	case OutcomeSuccess:
		pc.Successes++
	case OutcomeFailure:
		pc.Failures++
	case OutcomeSkip:
		pc.Skips++
	case OutcomeFallback:
		pc.Fallbacks++
	}
}

// Snapshot 返回当前统计，供应商按名称排序
func (c *RouteCounter) Snapshot() RouteStats {
	c.mu.Lock()
	providers := make([]ProviderCounts, 0, len(c.byProvider))
	for _, pc := range c.byProvider {
		providers = append(providers, *pc)
	}
	out := RouteStats{
		Successes: c.successes,
		Failures:  c.exhausted,
	}
	c.mu.Unlock()

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].ProviderName < providers[j].ProviderName
	})
	out.Providers = providers
	out.TotalCalls = c.calls.GetTotal()
	out.CurrentQPS = c.calls.GetQPS()
	return out
}

// Stop 释放后台协程
func (c *RouteCounter) Stop() {
	c.calls.Stop()
}
