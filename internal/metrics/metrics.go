// Package metrics exposes sync and probe results in the Prometheus text
// format, for collection through the node exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vanish/internal/probe"
)

const metricsNamespace = "vanish"

type Metrics struct {
	Registry       *prometheus.Registry
	ObservedValues ObservedValues
}

type ObservedValues struct {
	LastSyncedAt     *prometheus.GaugeVec
	NumberOfServers  prometheus.Gauge
	NumberOfProfiles prometheus.Gauge
	ProbedServers    prometheus.Gauge
	ReachableServers prometheus.Gauge
	ProbeRTT         prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ObservedValues: ObservedValues{
			LastSyncedAt: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "last_synced_at", Help: "Unix timestamp of the last successful sync"},
				[]string{"subject"}),
			NumberOfServers: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "catalog_servers", Help: "Number of servers in the local snapshot"}),
			NumberOfProfiles: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "profiles", Help: "Number of .ovpn profiles extracted by the last profile sync, excluding support files"}),
			ProbedServers: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "probed_servers", Help: "Number of servers probed in the last run"}),
			ReachableServers: prometheus.NewGauge(
				prometheus.GaugeOpts{Namespace: metricsNamespace, Name: "reachable_servers", Help: "Number of servers that answered in the last run"}),
			ProbeRTT: prometheus.NewHistogram(
				prometheus.HistogramOpts{Namespace: metricsNamespace, Name: "probe_rtt_seconds", Help: "Round-trip times of reachable servers",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1}}),
		},
	}

	m.Registry.MustRegister(
		m.ObservedValues.LastSyncedAt,
		m.ObservedValues.NumberOfServers,
		m.ObservedValues.NumberOfProfiles,
		m.ObservedValues.ProbedServers,
		m.ObservedValues.ReachableServers,
		m.ObservedValues.ProbeRTT,
	)
	return m
}

// StatusSynced records a successful status sync of n servers.
func (m *Metrics) StatusSynced(n int) {
	m.ObservedValues.LastSyncedAt.WithLabelValues("status").SetToCurrentTime()
	m.ObservedValues.NumberOfServers.Set(float64(n))
}

// ProfilesSynced records a profile sync that extracted n profiles.
func (m *Metrics) ProfilesSynced(n int) {
	m.ObservedValues.LastSyncedAt.WithLabelValues("profiles").SetToCurrentTime()
	m.ObservedValues.NumberOfProfiles.Set(float64(n))
}

// SyncedAt restores the time of an earlier sync of subject.
func (m *Metrics) SyncedAt(subject string, t time.Time) {
	m.ObservedValues.LastSyncedAt.WithLabelValues(subject).Set(float64(t.Unix()))
}

func (m *Metrics) CatalogLoaded(n int) {
	m.ObservedValues.NumberOfServers.Set(float64(n))
}

func (m *Metrics) Probed(results []probe.Result) {
	reachable := 0
	for _, r := range results {
		if r.OK() {
			reachable++
			m.ObservedValues.ProbeRTT.Observe(r.RTT.Seconds())
		}
	}
	m.ObservedValues.ProbedServers.Set(float64(len(results)))
	m.ObservedValues.ReachableServers.Set(float64(reachable))
}

// WriteToTextfile atomically replaces path with the current values.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
