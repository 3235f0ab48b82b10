package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLedgerMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.ObserveOp("reserve", 250*time.Millisecond)
	m.IncRejection("reserve", "already_reserved")
	m.IncLockTimeout()
	m.IncGiftFunded()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "ledger_op_rejections", "reason", "already_reserved"); err != nil {
		t.Fatalf("fetch rejections: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejections=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_lock_timeouts", "", ""); err != nil {
		t.Fatalf("fetch lock timeouts: %v", err)
	} else if got != 1 {
		t.Fatalf("expected lock_timeouts=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "ledger_gifts_funded", "", ""); err != nil {
		t.Fatalf("fetch gifts funded: %v", err)
	} else if got != 1 {
		t.Fatalf("expected gifts_funded=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "ledger_op_duration_seconds", "op", "reserve"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestHubMetricsExportsGaugeAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHubMetrics(reg)
	m.SetSubscribers("wishlist", 3)
	m.IncPublished("gift-reserved")
	m.IncDropped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchGaugeValue(mfs, "hub_subscribers", "channel", "wishlist"); err != nil {
		t.Fatalf("fetch subscribers: %v", err)
	} else if got != 3 {
		t.Fatalf("expected subscribers=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "hub_events_published", "kind", "gift-reserved"); err != nil {
		t.Fatalf("fetch published: %v", err)
	} else if got != 1 {
		t.Fatalf("expected published=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "hub_events_dropped", "", ""); err != nil {
		t.Fatalf("fetch dropped: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dropped=1, got %f", got)
	}
}

func TestNilRegistererIsNoOp(t *testing.T) {
	lm := NewLedgerMetrics(nil)
	lm.ObserveOp("reserve", time.Second)
	lm.IncRejection("reserve", "busy")
	lm.IncLockTimeout()
	lm.IncGiftFunded()

	hm := NewHubMetrics(nil)
	hm.SetSubscribers("wishlist", 1)
	hm.IncPublished("gift-added")
	hm.IncDropped()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" || matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
