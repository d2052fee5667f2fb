package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter はRedisの固定ウィンドウカウンタでレート制限を適用する。
// 複数インスタンス間で同じカウンタを共有する。
type RedisLimiter struct {
	rdb      *redis.Client
	policies Policies
	prefix   string
	now      func() time.Time
}

// RedisLimiterOption はRedisLimiterの設定オプション。
type RedisLimiterOption func(*RedisLimiter)

// WithKeyPrefix はRedisキーのプレフィックスを設定する。
func WithKeyPrefix(prefix string) RedisLimiterOption {
	return func(l *RedisLimiter) { l.prefix = strings.Trim(prefix, ":") }
}

// NewRedisLimiter はRedisLimiterを生成する。
func NewRedisLimiter(rdb *redis.Client, policies Policies, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:      rdb,
		policies: policies,
		prefix:   "ratelimit",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisClient はREDIS_URLからクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// windowKey はバケット・キー・ウィンドウ開始時刻からRedisキーを組み立てる。
func (l *RedisLimiter) windowKey(sel Selection, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.prefix, sel.Bucket, sel.Key, windowStart.Unix())
}

// Allow は現在のウィンドウのカウンタをINCRし、上限以内であれば許可する。
// Redisに到達できない場合はエラーを返す。
func (l *RedisLimiter) Allow(ctx context.Context, sel Selection) (Decision, error) {
	policy := l.policies.For(sel.Bucket)
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: false, Limit: policy.Limit, RetryAfter: policy.Window}, nil
	}

	now := l.now()
	windowStart := now.Truncate(policy.Window)
	key := l.windowKey(sel, windowStart)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit counter update failed: %w", err)
	}

	count := int(incr.Val())
	dec := Decision{
		Allowed:   count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: policy.Limit - count,
	}
	if dec.Remaining < 0 {
		dec.Remaining = 0
	}
	if !dec.Allowed {
		dec.RetryAfter = windowStart.Add(policy.Window).Sub(now)
	}
	return dec, nil
}

// compile-time interface check
var _ Limiter = (*RedisLimiter)(nil)
