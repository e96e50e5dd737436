// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tamzrod/lxp-replicator/internal/dongle"
	"github.com/tamzrod/lxp-replicator/internal/poller"
)

const namespace = "lxp"

// Source is what the collector reads from each unit's client.
type Source interface {
	Cached() dongle.Snapshot
	RecoveryStats() dongle.RecoveryStats
	ConnectionStats() dongle.ConnectionStats
}

var (
	recoveryAttemptsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recovery", "attempts_total"),
		"Packet recovery attempts.", []string{"unit"}, nil)
	recoverySuccessesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recovery", "successes_total"),
		"Packet recoveries that produced a valid frame.", []string{"unit"}, nil)
	recoveryFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recovery", "failures_total"),
		"Packet recoveries that gave up.", []string{"unit"}, nil)
	recoveryRateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "recovery", "success_rate_percent"),
		"Share of recovery attempts that succeeded.", []string{"unit"}, nil)
	connectRetriesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "connection", "retries_total"),
		"Connect attempts that were retried after a failure.", []string{"unit"}, nil)
	consecutiveFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "connection", "consecutive_failures"),
		"Current streak of failed connection cycles.", []string{"unit"}, nil)
	registerDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "register_value"),
		"Last known good raw register value.", []string{"unit", "bank", "register"}, nil)
	batteryDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "battery_value"),
		"Last known good raw battery block value.", []string{"unit", "serial", "offset"}, nil)
)

// Collector exports client statistics and cached registers.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]Source

	pollDuration *prometheus.GaugeVec
	polls        *prometheus.CounterVec
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		sources: make(map[string]Source),
		pollDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of the last poll cycle.",
		}, []string{"unit"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Poll cycles by outcome.",
		}, []string{"unit", "outcome"}),
	}
}

// Add registers a unit's client.
func (c *Collector) Add(unit string, s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[unit] = s
}

// ObservePoll records one poll cycle.
func (c *Collector) ObservePoll(res poller.PollResult) {
	outcome := "ok"
	switch {
	case res.Err != nil:
		outcome = "error"
	case res.Stale:
		outcome = "stale"
	}
	c.polls.WithLabelValues(res.UnitID, outcome).Inc()
	c.pollDuration.WithLabelValues(res.UnitID).Set(res.Duration.Seconds())
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- recoveryAttemptsDesc
	ch <- recoverySuccessesDesc
	ch <- recoveryFailuresDesc
	ch <- recoveryRateDesc
	ch <- connectRetriesDesc
	ch <- consecutiveFailuresDesc
	ch <- registerDesc
	ch <- batteryDesc
	c.pollDuration.Describe(ch)
	c.polls.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for unit, s := range c.sources {
		rs := s.RecoveryStats()
		cs := s.ConnectionStats()

		ch <- prometheus.MustNewConstMetric(recoveryAttemptsDesc, prometheus.CounterValue, float64(rs.Attempts), unit)
		ch <- prometheus.MustNewConstMetric(recoverySuccessesDesc, prometheus.CounterValue, float64(rs.Successes), unit)
		ch <- prometheus.MustNewConstMetric(recoveryFailuresDesc, prometheus.CounterValue, float64(rs.Failures), unit)
		ch <- prometheus.MustNewConstMetric(recoveryRateDesc, prometheus.GaugeValue, rs.SuccessRate, unit)
		ch <- prometheus.MustNewConstMetric(connectRetriesDesc, prometheus.CounterValue, float64(cs.Retries), unit)
		ch <- prometheus.MustNewConstMetric(consecutiveFailuresDesc, prometheus.GaugeValue, float64(cs.ConsecutiveFailures), unit)

		snap := s.Cached()
		for reg, v := range snap.Input {
			ch <- prometheus.MustNewConstMetric(registerDesc, prometheus.GaugeValue, float64(v), unit, "input", strconv.Itoa(int(reg)))
		}
		for reg, v := range snap.Hold {
			ch <- prometheus.MustNewConstMetric(registerDesc, prometheus.GaugeValue, float64(v), unit, "hold", strconv.Itoa(int(reg)))
		}
		for serial, rec := range snap.Battery {
			// Label values must be UTF-8 or the whole scrape fails.
			if !utf8.ValidString(serial) {
				continue
			}
			for off, v := range rec {
				ch <- prometheus.MustNewConstMetric(batteryDesc, prometheus.GaugeValue, float64(v), unit, serial, strconv.Itoa(int(off)))
			}
		}
	}

	c.pollDuration.Collect(ch)
	c.polls.Collect(ch)
}

// Handler serves the collector on its own registry with Go runtime metrics.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
