package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/starterapi/internal/identity"
	"github.com/hitoshi/starterapi/internal/ratelimit"
)

// mockCollector はテスト用のMetricsCollector。記録内容を保持する。
type mockCollector struct {
	mu             sync.Mutex
	decisions      []string
	storeErrors    []string
	httpStatuses   []int
	procedureCalls []string
}

func (m *mockCollector) RecordRateLimitDecision(bucket string, allowed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.decisions = append(m.decisions, bucket+":"+result)
}

func (m *mockCollector) RecordRateLimitStoreError(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors = append(m.storeErrors, bucket)
}

func (m *mockCollector) RecordIdentityProviderFailure(provider string) {}

func (m *mockCollector) RecordQuotaRejection(tier string) {}

func (m *mockCollector) RecordProcedureCall(procedure, code string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procedureCalls = append(m.procedureCalls, procedure+":"+code)
}

func (m *mockCollector) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpStatuses = append(m.httpStatuses, statusCode)
}

func (m *mockCollector) RecordSessionsPurged(count int64) {}

// mockLimiter はテスト用のLimiter。
type mockLimiter struct {
	allowFn func(ctx context.Context, sel ratelimit.Selection) (ratelimit.Decision, error)

	mu       sync.Mutex
	selected []ratelimit.Selection
}

func (m *mockLimiter) Allow(ctx context.Context, sel ratelimit.Selection) (ratelimit.Decision, error) {
	m.mu.Lock()
	m.selected = append(m.selected, sel)
	m.mu.Unlock()
	return m.allowFn(ctx, sel)
}

// mockResolver はテスト用のIdentityResolver。
type mockResolver struct {
	id    identity.Identity
	calls int
}

func (m *mockResolver) Resolve(ctx context.Context, r *http.Request) identity.Identity {
	m.calls++
	return m.id
}
