package sessionguard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricLoginLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatal("nil metrics must be inert")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricNavigationAllowed)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricNavigationAllowed); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricLoginLatency, d)
	}
	// only the login latency carries a histogram
	m.Observe(MetricLogout, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricLoginLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLogout]; ok {
		t.Fatal("unexpected histogram for MetricLogout")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricLoginLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected MetricLoginFailure=2 got %d", snap.Counters[MetricLoginFailure])
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("latency histograms are off, expected none")
	}
}

func TestSessionRecordsNavigationAndLatency(t *testing.T) {
	s := newTestSession(t, staticExchanger(issueToken(t, 1, "bob", "employee"), nil))

	require.NoError(t, s.Login(context.Background(), "bob", "pw"))
	s.RecordNavigation(true)
	s.RecordNavigation(true)
	s.RecordNavigation(false)

	snap := s.MetricsSnapshot()
	assert.Equal(t, uint64(2), snap.Counters[MetricNavigationAllowed])
	assert.Equal(t, uint64(1), snap.Counters[MetricNavigationRedirected])

	var total uint64
	for _, v := range snap.Histograms[MetricLoginLatency] {
		total += v
	}
	assert.Equal(t, uint64(1), total)
}

func TestMetricsHistogramSum(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginLatency, 20*time.Millisecond)
	m.Observe(MetricLoginLatency, 300*time.Millisecond)
	m.Observe(MetricLoginLatency, -time.Second)

	snap := m.Snapshot()
	assert.Equal(t, 320*time.Millisecond, snap.HistogramSums[MetricLoginLatency])

	_, ok := NewMetrics(MetricsConfig{Enabled: true}).Snapshot().HistogramSums[MetricLoginLatency]
	assert.False(t, ok)
}
