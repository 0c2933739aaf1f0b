package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestNewWith_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordHTTPRequest("GET", "/api/v1/folders", 200, 5*time.Millisecond)
	m.RecordJob("folder_embedding", "completed", time.Second)
	m.SetQueueDepth(3, 1, 10, 2)
	m.RecordJanitorRun(2, 5, nil)
	m.RecordQuery(nil, 250)

	names := gatherNames(t, reg)
	want := []string{
		"nexkb_http_requests_total",
		"nexkb_http_request_duration_seconds",
		"nexkb_jobs_processed_total",
		"nexkb_job_duration_seconds",
		"nexkb_queue_depth",
		"nexkb_jobs_requeued_total",
		"nexkb_jobs_purged_total",
		"nexkb_janitor_runs_total",
		"nexkb_queries_forwarded_total",
		"nexkb_query_tokens_total",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestRecordQuery_ErrorStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordQuery(errors.New("engine down"), 0)
	m.RecordQuery(nil, 100)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, f := range families {
		if f.GetName() != "nexkb_queries_forwarded_total" {
			continue
		}
		seen := map[string]float64{}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					seen[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
		if seen["error"] != 1 {
			t.Errorf("error count = %v, want 1", seen["error"])
		}
		if seen["success"] != 1 {
			t.Errorf("success count = %v, want 1", seen["success"])
		}
		return
	}
	t.Fatal("nexkb_queries_forwarded_total not found")
}

func TestRecordJanitorRun_Error(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)

	m.RecordJanitorRun(0, 0, errors.New("lock not acquired"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "nexkb_janitor_runs_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == "error" {
					if got := metric.GetCounter().GetValue(); got != 1 {
						t.Errorf("error runs = %v, want 1", got)
					}
					return
				}
			}
		}
	}
	t.Fatal("janitor error run not recorded")
}
