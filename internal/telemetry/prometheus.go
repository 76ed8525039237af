package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusSink mirrors the packet, error, performance and energy streams
// as scrape-able Prometheus metrics, serving them over /metrics on its own
// registry. The full stream is not mirrored.
// It does not replace the buffer/file sinks required by the core's
// resource model — it is an additional backend layered alongside one
// via MultiSink.
type PrometheusSink struct {
	registry *prometheus.Registry

	packetsTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	batteryGauge   *prometheus.GaugeVec
	meanBattery    prometheus.Gauge
	deliveredTotal *prometheus.CounterVec
	attemptedTotal *prometheus.CounterVec
}

// NewPrometheusSink builds a PrometheusSink with its own registry.
func NewPrometheusSink() *PrometheusSink {
	reg := prometheus.NewRegistry()

	p := &PrometheusSink{
		registry: reg,
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecrsim_packets_total",
			Help: "RP packets observed, by event (sent/delivered).",
		}, []string{"event", "src", "dst"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecrsim_errors_total",
			Help: "Errors emitted by node.",
		}, []string{"node", "recoverable"}),
		batteryGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ecrsim_node_battery",
			Help: "Per-node battery level in [0,1].",
		}, []string{"node"}),
		meanBattery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecrsim_mean_battery",
			Help: "Mean battery level across all nodes.",
		}),
		deliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecrsim_delivered_total",
			Help: "Delivered RP payloads per (src,dst) route.",
		}, []string{"src", "dst"}),
		attemptedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecrsim_attempted_total",
			Help: "Attempted sends per (src,dst) route.",
		}, []string{"src", "dst"}),
	}

	reg.MustRegister(p.packetsTotal, p.errorsTotal, p.batteryGauge, p.meanBattery, p.deliveredTotal, p.attemptedTotal)
	return p
}

// Handler returns the http.Handler serving this sink's /metrics page.
func (p *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusSink) Full(FullRecord) {}

func (p *PrometheusSink) Packet(r PacketRecord) {
	p.packetsTotal.WithLabelValues(r.Event, r.Src, r.Dst).Inc()
}

func (p *PrometheusSink) Error(r ErrorRecord) {
	recoverable := "false"
	if r.Recoverable {
		recoverable = "true"
	}
	p.errorsTotal.WithLabelValues(r.Node, recoverable).Inc()
}

func (p *PrometheusSink) Performance(r PerformanceRecord) {
	p.deliveredTotal.WithLabelValues(r.Src, r.Dst).Add(float64(r.Delivered))
	p.attemptedTotal.WithLabelValues(r.Src, r.Dst).Add(float64(r.Attempted))
}

func (p *PrometheusSink) Energy(r EnergyRecord) {
	p.meanBattery.Set(r.MeanBattery)
	for node, battery := range r.PerNode {
		p.batteryGauge.WithLabelValues(node).Set(battery)
	}
}
