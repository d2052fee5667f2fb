// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordRateLimitDecision(bucket string, allowed bool)
	RecordRateLimitStoreError(bucket string)
	RecordIdentityProviderFailure(provider string)
	RecordQuotaRejection(tier string)
	RecordProcedureCall(procedure, code string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	rateLimitDecisions   *prometheus.CounterVec
	rateLimitStoreErrors *prometheus.CounterVec
	identityFailures     *prometheus.CounterVec
	quotaRejections      *prometheus.CounterVec
	procedureCalls       *prometheus.CounterVec
	procedureLatency     *prometheus.HistogramVec
	httpStatus           *prometheus.CounterVec
	sessionsPurged       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_ratelimit_decisions_total",
			Help: "バケット別のレート制限判定数",
		}, []string{"bucket", "result"}),
		rateLimitStoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_ratelimit_store_errors_total",
			Help: "レート制限ストアの障害によりfail-openした回数",
		}, []string{"bucket"}),
		identityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_identity_provider_failures_total",
			Help: "認証情報プロバイダの失敗数（匿名として扱われた回数）",
		}, []string{"provider"}),
		quotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_quota_rejections_total",
			Help: "プラン上限によりTodo作成が拒否された回数",
		}, []string{"tier"}),
		procedureCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_procedure_calls_total",
			Help: "RPCプロシージャの呼び出し数",
		}, []string{"procedure", "code"}),
		procedureLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "starterapi_procedure_latency_seconds",
			Help:    "RPCプロシージャの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starterapi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starterapi_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.rateLimitDecisions,
		c.rateLimitStoreErrors,
		c.identityFailures,
		c.quotaRejections,
		c.procedureCalls,
		c.procedureLatency,
		c.httpStatus,
		c.sessionsPurged,
	)

	return c
}

// RecordRateLimitDecision はレート制限の判定結果を記録する。
func (c *Collector) RecordRateLimitDecision(bucket string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "limited"
	}
	c.rateLimitDecisions.WithLabelValues(bucket, result).Inc()
}

// RecordRateLimitStoreError はレート制限ストアの障害を記録する。
func (c *Collector) RecordRateLimitStoreError(bucket string) {
	c.rateLimitStoreErrors.WithLabelValues(bucket).Inc()
}

// RecordIdentityProviderFailure は認証情報プロバイダの失敗を記録する。
func (c *Collector) RecordIdentityProviderFailure(provider string) {
	c.identityFailures.WithLabelValues(provider).Inc()
}

// RecordQuotaRejection はプラン上限による拒否を記録する。
func (c *Collector) RecordQuotaRejection(tier string) {
	c.quotaRejections.WithLabelValues(tier).Inc()
}

// RecordProcedureCall はRPCプロシージャの呼び出し結果と処理時間を記録する。
// codeは成功時に"OK"、失敗時はエラーコードを指定する。
func (c *Collector) RecordProcedureCall(procedure, code string, duration time.Duration) {
	c.procedureCalls.WithLabelValues(procedure, code).Inc()
	c.procedureLatency.WithLabelValues(procedure).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsPurged は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
