package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名・ラベルに一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		t.Fatalf("metric %s%v not found", name, labels)
	}
	return m.GetCounter().GetValue()
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if c := NewCollector(prometheus.NewRegistry()); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordRateLimitDecision_SplitsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimitDecision("authenticated", true)
	c.RecordRateLimitDecision("authenticated", true)
	c.RecordRateLimitDecision("authenticated", false)

	if got := counterValue(t, reg, "starterapi_ratelimit_decisions_total", map[string]string{"bucket": "authenticated", "result": "allowed"}); got != 2 {
		t.Errorf("allowed = %v, want 2", got)
	}
	if got := counterValue(t, reg, "starterapi_ratelimit_decisions_total", map[string]string{"bucket": "authenticated", "result": "limited"}); got != 1 {
		t.Errorf("limited = %v, want 1", got)
	}
}

func TestRecordRateLimitStoreError_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRateLimitStoreError("unauthenticated")

	if got := counterValue(t, reg, "starterapi_ratelimit_store_errors_total", map[string]string{"bucket": "unauthenticated"}); got != 1 {
		t.Errorf("store_errors = %v, want 1", got)
	}
}

func TestRecordIdentityProviderFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIdentityProviderFailure("session")
	c.RecordIdentityProviderFailure("customer_state")

	if got := counterValue(t, reg, "starterapi_identity_provider_failures_total", map[string]string{"provider": "session"}); got != 1 {
		t.Errorf("session failures = %v, want 1", got)
	}
}

func TestRecordQuotaRejection_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordQuotaRejection("free")

	if got := counterValue(t, reg, "starterapi_quota_rejections_total", map[string]string{"tier": "free"}); got != 1 {
		t.Errorf("quota_rejections = %v, want 1", got)
	}
}

func TestRecordProcedureCall_RecordsCountAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProcedureCall("todo.create", "OK", 150*time.Millisecond)

	if got := counterValue(t, reg, "starterapi_procedure_calls_total", map[string]string{"procedure": "todo.create", "code": "OK"}); got != 1 {
		t.Errorf("procedure_calls = %v, want 1", got)
	}
	m := findMetric(t, reg, "starterapi_procedure_latency_seconds", map[string]string{"procedure": "todo.create"})
	if m == nil {
		t.Fatal("latency histogram not found")
	}
	if m.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", m.GetHistogram().GetSampleCount())
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(429)

	if got := counterValue(t, reg, "starterapi_http_status_total", map[string]string{"status_code": "429"}); got != 1 {
		t.Errorf("http_status{429} = %v, want 1", got)
	}
}

func TestRecordSessionsPurged_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionsPurged(5)
	c.RecordSessionsPurged(2)

	if got := counterValue(t, reg, "starterapi_sessions_purged_total", nil); got != 7 {
		t.Errorf("sessions_purged = %v, want 7", got)
	}
}
