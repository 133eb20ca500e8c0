// Package metrics exposes FD's runtime counters as Prometheus gauges
// and counters: ambient observability carried even though the
// operator UI itself is out of scope (§6 supplement).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

// Registry bundles every metric FD reports, registered against a
// private prometheus.Registry so importers don't pollute the global
// default registry.
type Registry struct {
	reg *prometheus.Registry

	noOfTransfers *prometheus.GaugeVec
	jobsQueued    *prometheus.GaugeVec
	qbLength      prometheus.Gauge
	burst2Total   prometheus.Gauge
	forkTotal     prometheus.Gauge
}

// New builds and registers FD's metric set.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.noOfTransfers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fd",
		Name:      "no_of_transfers",
		Help:      "Live worker processes currently running.",
	}, []string{"scope"})

	r.jobsQueued = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fd",
		Name:      "jobs_queued",
		Help:      "Pending jobs queued per host.",
	}, []string{"host"})

	r.qbLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fd",
		Name:      "queue_buffer_length",
		Help:      "Current number of entries in the queue buffer.",
	})

	r.burst2Total = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fd",
		Name:      "burst_chains_total",
		Help:      "Cumulative number of burst-mode connection reuses (§4.6).",
	})

	r.forkTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fd",
		Name:      "worker_forks_total",
		Help:      "Cumulative number of worker processes forked.",
	})

	r.reg.MustRegister(r.noOfTransfers, r.jobsQueued, r.qbLength, r.burst2Total, r.forkTotal)
	return r
}

// Registry exposes the underlying prometheus.Registry, e.g. for a
// promhttp.HandlerFor; cmd/fd does not serve it over HTTP.
func (r *Registry) Registry() *prometheus.Registry { return r.reg }

// Observe snapshots the live status area and FSA/QB into the gauges;
// called once per event-loop iteration by the daemon.
func (r *Registry) Observe(status *statusarea.AFDStatus, fsa *statusarea.FSA, qbuf *qb.Buffer) {
	r.noOfTransfers.WithLabelValues("total").Set(float64(status.NoOfTransfers()))
	r.qbLength.Set(float64(qbuf.Len()))
	r.burst2Total.Set(float64(status.Burst2Counter()))
	r.forkTotal.Set(float64(status.ForkCounter()))
	for pos := 0; pos < fsa.Len(); pos++ {
		host := fsa.Get(pos)
		if host.HostAlias == "" {
			continue
		}
		r.jobsQueued.WithLabelValues(host.HostAlias).Set(float64(host.JobsQueued))
	}
}
