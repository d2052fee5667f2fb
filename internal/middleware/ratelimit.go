package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/starterapi/internal/identity"
	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/model"
	"github.com/hitoshi/starterapi/internal/ratelimit"
)

// RateLimitMiddleware は解決済みの呼び出し元からバケットとキーを選び、レート制限を適用する。
// IdentityMiddlewareの後に配置する。
type RateLimitMiddleware struct {
	selector  *ratelimit.Selector
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewRateLimitMiddleware はRateLimitMiddlewareを生成する。
func NewRateLimitMiddleware(selector *ratelimit.Selector, limiter ratelimit.Limiter, logger *slog.Logger, collector metrics.MetricsCollector) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		selector:  selector,
		limiter:   limiter,
		logger:    logger,
		collector: collector,
	}
}

// Handler はレート制限ミドルウェアを返す。
// カウンタストアに到達できない場合はリクエストを許可する（fail-open）。
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sel := m.selector.Select(identity.FromContext(ctx), r.Header)
		bucket := string(sel.Bucket)

		dec, err := m.limiter.Allow(ctx, sel)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit store unavailable, allowing request",
				slog.String("bucket", bucket),
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("error", err.Error()),
			)
			m.collector.RecordRateLimitStoreError(bucket)
			next.ServeHTTP(w, r)
			return
		}

		m.collector.RecordRateLimitDecision(bucket, dec.Allowed)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

		if !dec.Allowed {
			m.logger.WarnContext(ctx, "rate limit exceeded",
				slog.String("bucket", bucket),
				slog.String("key", sel.Key),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(dec.RetryAfter)))
			WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds はRetry-Afterヘッダー用に秒単位へ切り上げる。最小1秒。
func retryAfterSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}
