package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

// counterValue sums every series of the named counter family.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
	series:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveFold(3)
	m.ObserveFold(2)
	m.ObserveRejected()
	m.ObserveBackendError("timeout")
	m.ObserveBackendError("timeout")
	m.ObserveBackendError("connection")
	m.ObserveCameraTick(nil)
	m.ObserveCameraTick(errors.New("boom"))
	m.ObserveReset()

	checks := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"escombro_results_folded_total", nil, 5},
		{"escombro_folds_rejected_total", nil, 1},
		{"escombro_backend_errors_total", map[string]string{"kind": "timeout"}, 2},
		{"escombro_backend_errors_total", map[string]string{"kind": "connection"}, 1},
		{"escombro_camera_ticks_total", nil, 2},
		{"escombro_camera_tick_failures_total", nil, 1},
		{"escombro_session_resets_total", nil, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, m, c.name, c.labels); got != c.want {
			t.Errorf("%s%v = %v, want %v", c.name, c.labels, got, c.want)
		}
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveFold(1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "escombro_results_folded_total 1") {
		t.Fatalf("metrics output missing folded counter:\n%s", body)
	}
}

func TestServeWithoutAddressIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := New().Serve(ctx, ""); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}
