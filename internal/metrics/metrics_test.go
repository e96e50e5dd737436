// internal/metrics/metrics_test.go
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tamzrod/lxp-replicator/internal/dongle"
	"github.com/tamzrod/lxp-replicator/internal/lxp"
	"github.com/tamzrod/lxp-replicator/internal/poller"
)

type fakeSource struct {
	snap dongle.Snapshot
	rs   dongle.RecoveryStats
	cs   dongle.ConnectionStats
}

func (f fakeSource) Cached() dongle.Snapshot { return f.snap }
func (f fakeSource) RecoveryStats() dongle.RecoveryStats { return f.rs }
func (f fakeSource) ConnectionStats() dongle.ConnectionStats { return f.cs }

func newSource() fakeSource {
	return fakeSource{
		snap: dongle.Snapshot{
			Input:   map[uint16]uint16{0: 1, 1: 2},
			Hold:    map[uint16]uint16{21: 7},
			Battery: map[string]lxp.BatteryRecord{"BAT-A": {0: 280}},
		},
		rs: dongle.RecoveryStats{Attempts: 10, Successes: 7, Failures: 3, SuccessRate: 70},
		cs: dongle.ConnectionStats{Retries: 4, ConsecutiveFailures: 2},
	}
}

func TestCollector_Metrics(t *testing.T) {
	c := NewCollector()
	c.Add("inv-1", newSource())

	expected := `
# HELP lxp_recovery_attempts_total Packet recovery attempts.
# TYPE lxp_recovery_attempts_total counter
lxp_recovery_attempts_total{unit="inv-1"} 10
# HELP lxp_recovery_success_rate_percent Share of recovery attempts that succeeded.
# TYPE lxp_recovery_success_rate_percent gauge
lxp_recovery_success_rate_percent{unit="inv-1"} 70
# HELP lxp_connection_consecutive_failures Current streak of failed connection cycles.
# TYPE lxp_connection_consecutive_failures gauge
lxp_connection_consecutive_failures{unit="inv-1"} 2
# HELP lxp_register_value Last known good raw register value.
# TYPE lxp_register_value gauge
lxp_register_value{bank="hold",register="21",unit="inv-1"} 7
lxp_register_value{bank="input",register="0",unit="inv-1"} 1
lxp_register_value{bank="input",register="1",unit="inv-1"} 2
# HELP lxp_battery_value Last known good raw battery block value.
# TYPE lxp_battery_value gauge
lxp_battery_value{offset="0",serial="BAT-A",unit="inv-1"} 280
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"lxp_recovery_attempts_total",
		"lxp_recovery_success_rate_percent",
		"lxp_connection_consecutive_failures",
		"lxp_register_value",
		"lxp_battery_value",
	)
	if err != nil {
		t.Fatalf("metrics mismatch: %v", err)
	}
}

func TestCollector_ObservePoll(t *testing.T) {
	c := NewCollector()

	c.ObservePoll(poller.PollResult{UnitID: "u", Duration: 1500 * time.Millisecond})
	c.ObservePoll(poller.PollResult{UnitID: "u", Stale: true})
	c.ObservePoll(poller.PollResult{UnitID: "u", Err: dongle.ErrUnavailable})
	c.ObservePoll(poller.PollResult{UnitID: "u", Err: dongle.ErrUnavailable, Duration: 2 * time.Second})

	if got := testutil.ToFloat64(c.polls.WithLabelValues("u", "error")); got != 2 {
		t.Fatalf("error polls=%v", got)
	}
	if got := testutil.ToFloat64(c.polls.WithLabelValues("u", "stale")); got != 1 {
		t.Fatalf("stale polls=%v", got)
	}
	if got := testutil.ToFloat64(c.pollDuration.WithLabelValues("u")); got != 2 {
		t.Fatalf("duration=%v", got)
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.Add("inv-1", newSource())

	h, err := Handler(c)
	if err != nil {
		t.Fatalf("Handler err=%v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"lxp_connection_retries_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("%s missing from output", want)
		}
	}
}

func TestCollector_SkipsInvalidBatterySerial(t *testing.T) {
	src := newSource()
	src.snap.Battery = map[string]lxp.BatteryRecord{
		"\xff\xfe": {0: 1},
		"BAT-A":    {0: 280},
	}
	c := NewCollector()
	c.Add("inv-1", src)

	if n := testutil.CollectAndCount(c, "lxp_battery_value"); n != 1 {
		t.Fatalf("battery series=%d want 1", n)
	}
}
