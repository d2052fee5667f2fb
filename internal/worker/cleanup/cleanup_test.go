package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockPurger はSessionPurgerのモック実装。
type mockPurger struct {
	mu      sync.Mutex
	calls   int
	befores []time.Time
	deleted int64
	err     error
}

func (m *mockPurger) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.befores = append(m.befores, before)
	return m.deleted, m.err
}

func (m *mockPurger) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockCollector は削除件数のみを記録するMetricsCollector。
type mockCollector struct {
	mu     sync.Mutex
	purged []int64
}

func (c *mockCollector) RecordRateLimitDecision(string, bool) {}
func (c *mockCollector) RecordRateLimitStoreError(string) {}
func (c *mockCollector) RecordIdentityProviderFailure(string) {}
func (c *mockCollector) RecordQuotaRejection(string) {}
func (c *mockCollector) RecordProcedureCall(string, string, time.Duration) {}
func (c *mockCollector) RecordHTTPStatus(int) {}
func (c *mockCollector) RecordSessionsPurged(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purged = append(c.purged, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{deleted: 7}
	collector := &mockCollector{}
	job := NewCleanupJob(purger, newTestLogger(&buf), collector)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if purger.calls != 1 {
		t.Fatalf("DeleteExpired calls = %d, want 1", purger.calls)
	}
	if !purger.befores[0].Equal(fixed) {
		t.Errorf("before = %v, want %v", purger.befores[0], fixed)
	}
	if len(collector.purged) != 1 || collector.purged[0] != 7 {
		t.Errorf("purged = %v, want [7]", collector.purged)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["deleted_count"] != float64(7) {
		t.Errorf("deleted_count = %v, want 7", entry["deleted_count"])
	}
}

func TestCleanupJob_Run_AppliesGrace(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, newTestLogger(&buf), &mockCollector{})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }
	job.Grace = time.Hour

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if want := fixed.Add(-time.Hour); !purger.befores[0].Equal(want) {
		t.Errorf("before = %v, want %v", purger.befores[0], want)
	}
}

func TestCleanupJob_Run_NothingToDeleteIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPurger{deleted: 0}, newTestLogger(&buf), &mockCollector{})

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run returned error: %v", err)
	}
}

func TestCleanupJob_Run_ReturnsAndLogsError(t *testing.T) {
	var buf bytes.Buffer
	collector := &mockCollector{}
	job := NewCleanupJob(&mockPurger{err: errors.New("connection refused")}, newTestLogger(&buf), collector)

	err := job.Run(context.Background())

	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want wrapped cause", err)
	}
	if !strings.Contains(buf.String(), "session cleanup failed") {
		t.Errorf("expected error log, got %s", buf.String())
	}
	if len(collector.purged) != 0 {
		t.Errorf("purged should not be recorded on failure, got %v", collector.purged)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	purger := &mockPurger{}
	job := NewCleanupJob(purger, newTestLogger(&buf), &mockCollector{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for purger.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if purger.callCount() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", purger.callCount())
	}
}
