package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewManagerRegistersCollectors verifies every collector lands in the
// injected registry under the namespace and subsystem.
func TestNewManagerRegistersCollectors(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	m.CounterRequests.WithLabelValues("GET", "200").Inc()
	m.CounterSessions.Inc()
	m.GaugeLifeSignal.Set(1)
	m.HistRequestDuration.Observe(0.02)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"hangtime_test_server_request",
		"hangtime_test_server_sessions_created",
		"hangtime_test_server_life_signal",
		"hangtime_test_server_request_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %q not registered", want)
		}
	}
}

// TestManagersAreIndependent verifies two test managers do not share state,
// so parallel handler tests can each create their own.
func TestManagersAreIndependent(t *testing.T) {
	a := NewTestManager()
	b := NewTestManager()
	a.CounterRepetitions.Add(3)

	if got := testutil.ToFloat64(a.CounterRepetitions); got != 3 {
		t.Errorf("a repetitions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(b.CounterRepetitions); got != 0 {
		t.Errorf("b repetitions = %v, want 0", got)
	}
}

// TestSetupPrometheusRegistersExtra verifies extra collectors are gathered
// alongside the runtime collectors.
func TestSetupPrometheusRegistersExtra(t *testing.T) {
	extra := prometheus.NewGauge(prometheus.GaugeOpts{Name: "hangtime_test_extra"})
	extra.Set(3)
	reg := SetupPrometheus(extra)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawExtra, sawGo bool
	for _, f := range families {
		switch f.GetName() {
		case "hangtime_test_extra":
			sawExtra = true
		case "go_goroutines":
			sawGo = true
		}
	}
	if !sawExtra || !sawGo {
		t.Fatalf("extra=%v go=%v, want both registered", sawExtra, sawGo)
	}
}
