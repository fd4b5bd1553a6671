package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/finledger/internal/jobs"
)

func TestJobMetricsReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	for i := 0; i < 40; i++ {
		tracker := metrics.Track("debt:overdue_sweep")
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending sweep tracker: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		tracker := metrics.Track("debt:overdue_sweep")
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}
	for i := 0; i < 5; i++ {
		tracker := metrics.Track("ledger:integrity")
		time.Sleep(10 * time.Millisecond)
		_ = tracker.End(nil)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "finledger_jobs_total", map[string]string{"job": "debt:overdue_sweep", "status": "success"})
	failure := metricValue(t, families, "finledger_jobs_total", map[string]string{"job": "debt:overdue_sweep", "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("sweep success ratio too low: %f", ratio)
	}
	if got := metricValue(t, families, "finledger_jobs_failures_total", map[string]string{"job": "debt:overdue_sweep"}); got != 2 {
		t.Fatalf("expected 2 failures, got %f", got)
	}
	if mean := histogramMean(t, families, "finledger_job_duration_seconds", map[string]string{"job": "ledger:integrity"}); mean > 2.0 {
		t.Fatalf("integrity duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				switch fam.GetType() {
				case dto.MetricType_COUNTER:
					return metric.GetCounter().GetValue()
				case dto.MetricType_GAUGE:
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
