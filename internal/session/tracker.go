// Package session 跟踪每个供应商在当前运行周期内的成功调用次数。
// 计数不落库，进程重启即清零；Redis 实现允许多个副本共享同一周期的计数。
package session

import (
	"context"
	"sync"
)

// Tracker 会话计数器
type Tracker interface {
	// Count 返回供应商当前的会话计数
	Count(ctx context.Context, providerID uint) (int, error)
	// Increment 计数加一并返回新值
	Increment(ctx context.Context, providerID uint) (int, error)
	// Snapshot 返回所有供应商的计数
	Snapshot(ctx context.Context) (map[uint]int, error)
}

// MemoryTracker 进程内计数器
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[uint]int
}

// NewMemoryTracker 创建进程内计数器
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[uint]int)}
}

// Count 返回当前计数
func (t *MemoryTracker) Count(_ context.Context, providerID uint) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[providerID], nil
}

// Increment 计数加一
func (t *MemoryTracker) Increment(_ context.Context, providerID uint) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[providerID]++
	return t.counts[providerID], nil
}

// Snapshot 返回计数副本
func (t *MemoryTracker) Snapshot(_ context.Context) (map[uint]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[uint]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out, nil
}
