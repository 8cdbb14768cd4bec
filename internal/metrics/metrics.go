package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/your-org/ubnad/internal/model"
)

var (
	scansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ubnad_scans_total",
			Help: "Number of connection-table scans performed.",
		},
	)

	eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ubnad_events_total",
			Help: "Number of new outbound connection events emitted.",
		},
	)

	droppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ubnad_events_dropped_total",
			Help: "Number of events dropped because the queue stayed full past the enqueue timeout.",
		},
	)

	processedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubnad_events_processed_total",
			Help: "Number of events fully scored and persisted, labelled by risk level.",
		},
		[]string{"risk"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ubnad_alerts_total",
			Help: "Number of alerts emitted, labelled by severity.",
		},
		[]string{"severity"},
	)

	knownConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ubnad_known_connections",
			Help: "Size of the scanner's known-connection dedup set.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ubnad_queue_depth",
			Help: "Number of events waiting in the scanner-to-analyzer queue.",
		},
	)
)

func Register(reg *prometheus.Registry) {
	reg.MustRegister(scansTotal, eventsTotal, droppedTotal, processedTotal, alertsTotal, knownConnections, queueDepth)
}

func IncScan()    { scansTotal.Inc() }
func IncEvent()   { eventsTotal.Inc() }
func IncDropped() { droppedTotal.Inc() }

func IncProcessed(risk model.RiskLevel) {
	processedTotal.WithLabelValues(string(risk)).Inc()
}

func IncAlert(severity model.RiskLevel) {
	alertsTotal.WithLabelValues(string(severity)).Inc()
}

func SetKnownConnections(n int) { knownConnections.Set(float64(n)) }
func SetQueueDepth(n int)       { queueDepth.Set(float64(n)) }
