// Package router 按优先级把单个文本生成请求路由到可用的上游供应商。
//
// 供应商依次尝试，不并发：先检查每日配额与会话配额，再按重试次数调用，
// 失败后转移到下一个供应商。每次尝试、跳过与转移都写入一条调用日志。
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Mieluoxxx/Siriusx-Router/internal/models"
	"github.com/Mieluoxxx/Siriusx-Router/internal/session"
	"github.com/Mieluoxxx/Siriusx-Router/internal/stats"
	"github.com/Mieluoxxx/Siriusx-Router/internal/upstream"
	"github.com/Mieluoxxx/Siriusx-Router/internal/usagelog"
	"github.com/google/uuid"
)

var (
	// ErrEmptyPrompt 提示词为空
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrNoActiveProviders 没有任何 active 供应商
	ErrNoActiveProviders = errors.New("no active providers configured")
	// ErrAllProvidersFailed 所有供应商都失败或被跳过
	ErrAllProvidersFailed = errors.New("all providers failed")
)

const (
	DefaultTimeout               = 8 * time.Second
	DefaultMaxRetriesPerProvider = 1
)

// ProviderStore 供应商配置存储
type ProviderStore interface {
	// ListActive 返回 status = active 的供应商，API Key 为明文
	ListActive(ctx context.Context) ([]models.Provider, error)
	// IncrementUsage usage_count 加一并刷新 last_tested
	IncrementUsage(ctx context.Context, id uint) error
}

// Caller 单次上游调用
type Caller interface {
	Call(ctx context.Context, p *models.Provider, prompt string, timeout time.Duration) *upstream.Attempt
}

// Options 单次路由参数，零值字段使用路由器默认值
type Options struct {
	Timeout               time.Duration
	MaxRetriesPerProvider int
	// SessionProviderLimit 每个供应商在当前运行周期内的成功次数上限，nil 或非正数表示不限制
	SessionProviderLimit *int
	// Sessions 会话计数器，nil 时使用路由器自带的计数器
	Sessions session.Tracker
}

// Result 路由成功的结果
type Result struct {
	RequestID      string `json:"request_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Text           string `json:"text"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// Router 供应商路由器
type Router struct {
	providers         ProviderStore
	caller            Caller
	recorder          usagelog.Recorder
	sessions          session.Tracker
	counter           *stats.RouteCounter
	defaults          Options
	defaultDailyLimit int
}

// Option 路由器配置项
type Option func(*Router)

// WithSessionTracker 设置默认会话计数器
func WithSessionTracker(t session.Tracker) Option {
	return func(r *Router) {
		if t != nil {
			r.sessions = t
		}
	}
}

// WithRouteCounter 设置路由统计
func WithRouteCounter(c *stats.RouteCounter) Option {
	return func(r *Router) { r.counter = c }
}

// WithDefaults 设置默认路由参数
func WithDefaults(o Options) Option {
	return func(r *Router) {
		if o.Timeout > 0 {
			r.defaults.Timeout = o.Timeout
		}
		if o.MaxRetriesPerProvider > 0 {
			r.defaults.MaxRetriesPerProvider = o.MaxRetriesPerProvider
		}
		if o.SessionProviderLimit != nil && *o.SessionProviderLimit > 0 {
			limit := *o.SessionProviderLimit
			r.defaults.SessionProviderLimit = &limit
		}
	}
}

// WithDefaultDailyLimit 设置未配置 daily_limit 时的上限
func WithDefaultDailyLimit(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.defaultDailyLimit = n
		}
	}
}

// New 创建路由器
func New(providers ProviderStore, caller Caller, recorder usagelog.Recorder, opts ...Option) *Router {
	r := &Router{
		providers: providers,
		caller:    caller,
		recorder:  recorder,
		sessions:  session.NewMemoryTracker(),
		defaults: Options{
			Timeout:               DefaultTimeout,
			MaxRetriesPerProvider: DefaultMaxRetriesPerProvider,
		},
		defaultDailyLimit: models.DefaultDailyLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sessions 返回路由器自带的会话计数器
func (r *Router) Sessions() session.Tracker {
	return r.sessions
}

// DefaultDailyLimit 返回生效的默认每日上限
func (r *Router) DefaultDailyLimit() int {
	return r.defaultDailyLimit
}

// ListActiveProviders 返回按尝试顺序排列的 active 供应商
// priority 升序（为空视为 0），同优先级按名称偏好 gemini、openai、groq，其余保持原有顺序
func (r *Router) ListActiveProviders(ctx context.Context) ([]models.Provider, error) {
	all, err := r.providers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]models.Provider, 0, len(all))
	for _, p := range all {
		if p.IsActive() {
			active = append(active, p)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		pi, pj := active[i].EffectivePriority(), active[j].EffectivePriority()
		if pi != pj {
			return pi < pj
		}
		return upstream.PreferenceRank(active[i].ProviderName) < upstream.PreferenceRank(active[j].ProviderName)
	})
	return active, nil
}

// Route 路由一次请求
// 单次尝试的失败只记录日志并触发重试或转移，只有两种边界情况返回错误：
// 没有 active 供应商，以及所有供应商都失败。调用方取消 ctx 时返回 ctx 的错误。
func (r *Router) Route(ctx context.Context, prompt string, opts Options) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	opts = r.resolve(opts)

	providers, err := r.ListActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, ErrNoActiveProviders
	}

	run := &routeRun{
		Router:    r,
		requestID: uuid.NewString(),
		prompt:    prompt,
		opts:      opts,
	}
	if r.counter != nil {
		r.counter.CallStarted()
	}

	result, err := run.execute(ctx, providers)
	if r.counter != nil {
		r.counter.CallFinished(err == nil)
	}
	return result, err
}

// resolve 用默认值补全参数
func (r *Router) resolve(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = r.defaults.Timeout
	}
	if opts.MaxRetriesPerProvider < 1 {
		opts.MaxRetriesPerProvider = r.defaults.MaxRetriesPerProvider
	}
	if opts.MaxRetriesPerProvider < 1 {
		opts.MaxRetriesPerProvider = 1
	}
	if opts.SessionProviderLimit == nil {
		opts.SessionProviderLimit = r.defaults.SessionProviderLimit
	}
	if opts.SessionProviderLimit != nil && *opts.SessionProviderLimit <= 0 {
		opts.SessionProviderLimit = nil
	}
	if opts.Sessions == nil {
		opts.Sessions = r.sessions
	}
	return opts
}
