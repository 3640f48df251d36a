package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisTracker 基于 Redis Hash 的会话计数器
// 每个运行周期使用独立的 key，周期标识在启动时生成
type RedisTracker struct {
	client *redis.Client
	key    string
}

// NewRedisTracker 创建 Redis 计数器
// runID 为空时生成新的周期标识，多个副本传入相同 runID 即共享计数
func NewRedisTracker(client *redis.Client, prefix, runID string) *RedisTracker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "session"
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	return &RedisTracker{
		client: client,
		key:    prefix + ":" + runID,
	}
}

// Key 返回当前周期使用的 Redis key
func (t *RedisTracker) Key() string {
	return t.key
}

// Count 返回当前计数
func (t *RedisTracker) Count(ctx context.Context, providerID uint) (int, error) {
	n, err := t.client.HGet(ctx, t.key, field(providerID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("session redis: get count: %w", err)
	}
	return n, nil
}

// Increment 计数加一
func (t *RedisTracker) Increment(ctx context.Context, providerID uint) (int, error) {
	n, err := t.client.HIncrBy(ctx, t.key, field(providerID), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("session redis: increment: %w", err)
	}
	return int(n), nil
}

// Snapshot 返回所有供应商的计数
func (t *RedisTracker) Snapshot(ctx context.Context) (map[uint]int, error) {
	raw, err := t.client.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("session redis: snapshot: %w", err)
	}
	out := make(map[uint]int, len(raw))
	for k, v := range raw {
		id, errID := strconv.ParseUint(k, 10, 64)
		n, errN := strconv.Atoi(v)
		if errID != nil || errN != nil {
			continue
		}
		out[uint(id)] = n
	}
	return out, nil
}

func field(providerID uint) string {
	return strconv.FormatUint(uint64(providerID), 10)
}
