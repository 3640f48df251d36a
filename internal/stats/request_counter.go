package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestCounter 请求计数器
// 内存计数 + 两个滑动时间窗口估算 QPS
type RequestCounter struct {
	totalRequests int64 // 原子操作

	windowMutex    sync.RWMutex
	currentWindow  *timeWindow
	previousWindow *timeWindow
	windowDuration time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// timeWindow 时间窗口
type timeWindow struct {
	count     int64
	startTime time.Time
}

// NewRequestCounter 创建请求计数器，windowDuration 为 0 时使用 60 秒窗口
func NewRequestCounter(windowDuration time.Duration) *RequestCounter {
	if windowDuration <= 0 {
		windowDuration = 60 * time.Second
	}

	now := time.Now()
	counter := &RequestCounter{
		windowDuration: windowDuration,
		currentWindow:  &timeWindow{startTime: now},
		previousWindow: &timeWindow{startTime: now.Add(-windowDuration)},
		done:           make(chan struct{}),
	}

	go counter.rotateWindows()

	return counter
}

// Increment 增加请求计数
func (rc *RequestCounter) Increment() {
	atomic.AddInt64(&rc.totalRequests, 1)

	rc.windowMutex.Lock()
	rc.currentWindow.count++
	rc.windowMutex.Unlock()
}

// GetTotal 获取总请求数
func (rc *RequestCounter) GetTotal() int64 {
	return atomic.LoadInt64(&rc.totalRequests)
}

// GetQPS 获取当前 QPS
// 当前窗口未满时与上一个窗口加权平均
func (rc *RequestCounter) GetQPS() float64 {
	rc.windowMutex.RLock()
	defer rc.windowMutex.RUnlock()

	currentElapsed := time.Since(rc.currentWindow.startTime).Seconds()
	if currentElapsed <= 0 {
		currentElapsed = 1
	}
	currentQPS := float64(rc.currentWindow.count) / currentElapsed

	window := rc.windowDuration.Seconds()
	if currentElapsed < window {
		prevWeight := (window - currentElapsed) / window
		prevQPS := float64(rc.previousWindow.count) / window
		return currentQPS*(1-prevWeight) + prevQPS*prevWeight
	}

	return currentQPS
}

// Stop 停止窗口滚动协程
func (rc *RequestCounter) Stop() {
	rc.stopOnce.Do(func() { close(rc.done) })
}

// rotateWindows 定期滚动时间窗口
func (rc *RequestCounter) rotateWindows() {
	ticker := time.NewTicker(rc.windowDuration)
	defer ticker.Stop()

	for {
		select {
		case <-rc.done:
			return
		case <-ticker.C:
			rc.windowMutex.Lock()
			rc.previousWindow = rc.currentWindow
			rc.currentWindow = &timeWindow{startTime: time.Now()}
			rc.windowMutex.Unlock()
		}
	}
}

// GetStats 获取统计信息
func (rc *RequestCounter) GetStats() RequestStats {
	return RequestStats{
		Total:      rc.GetTotal(),
		CurrentQPS: rc.GetQPS(),
	}
}

// RequestStats 请求统计信息
type RequestStats struct {
	Total      int64   `json:"total"`
	CurrentQPS float64 `json:"current_qps"`
}
