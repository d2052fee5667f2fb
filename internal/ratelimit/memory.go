package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry はキーごとのトークンバケットと最終アクセス時刻を保持する。
type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// MemoryLimiter はプロセス内のトークンバケットでレート制限を適用する。
// 単一インスタンス構成や開発環境向け。複数インスタンスではRedisLimiterを使用する。
type MemoryLimiter struct {
	policies        Policies
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryLimiter は新しいMemoryLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemoryLimiter(policies Policies, cleanupInterval time.Duration) *MemoryLimiter {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	l := &MemoryLimiter{
		policies:        policies,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		entries:         make(map[string]*entry),
		stopCh:          make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow はトークンを1つ消費できれば許可する。ストア障害はないため常にnilエラー。
func (l *MemoryLimiter) Allow(ctx context.Context, sel Selection) (Decision, error) {
	policy := l.policies.For(sel.Bucket)
	now := l.now()
	lim := l.getOrCreate(string(sel.Bucket)+":"+sel.Key, policy, now)

	dec := Decision{Allowed: true, Limit: policy.Limit}

	r := lim.ReserveN(now, 1)
	switch {
	case !r.OK():
		dec.Allowed = false
		dec.RetryAfter = policy.Window
	case r.DelayFrom(now) > 0:
		dec.Allowed = false
		dec.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}

	dec.Remaining = int(math.Max(0, math.Floor(lim.TokensAt(now))))
	return dec, nil
}

// Len は現在管理されているエントリ数を返す。テスト用。
func (l *MemoryLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// getOrCreate はキーのリミッターを取得または作成する。
func (l *MemoryLimiter) getOrCreate(key string, policy Policy, now time.Time) *rate.Limiter {
	l.mu.RLock()
	e, exists := l.entries[key]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		e.lastAccess = now
		l.mu.Unlock()
		return e.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// ダブルチェック
	if e, exists := l.entries[key]; exists {
		e.lastAccess = now
		return e.limiter
	}

	var lim *rate.Limiter
	if policy.Limit <= 0 || policy.Window <= 0 {
		// 上限0のバケットはすべて拒否する
		lim = rate.NewLimiter(0, 0)
	} else {
		lim = rate.NewLimiter(rate.Every(policy.Window/time.Duration(policy.Limit)), policy.Limit)
	}
	l.entries[key] = &entry{limiter: lim, lastAccess: now}

	return lim
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからcleanupIntervalの2倍を超えたエントリを削除する。
func (l *MemoryLimiter) cleanup() {
	ttl := l.cleanupInterval * 2
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(l.entries, key)
		}
	}
}

// compile-time interface check
var _ Limiter = (*MemoryLimiter)(nil)
