// Package metrics adaptador Prometheus del puerto ports.Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/fbs-core/internal/application/ports"
)

var _ ports.Metrics = (*Prometheus)(nil)

// Prometheus contadores del núcleo registrados en un Registerer.
type Prometheus struct {
	ledgerOps  *prometheus.CounterVec
	violations *prometheus.CounterVec
	ingest     *prometheus.CounterVec
	stale      *prometheus.CounterVec
}

// NewPrometheus crea y registra los contadores. reg nil usa el registro por defecto.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbs",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Operaciones del ledger por tipo y resultado.",
		}, []string{"op", "outcome"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbs",
			Subsystem: "ledger",
			Name:      "invariant_violations_total",
			Help:      "Cantidades negativas rechazadas o entradas que no cuadran con su historial.",
		}, []string{"kind"}),
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbs",
			Subsystem: "marketplace",
			Name:      "events_total",
			Help:      "Eventos de marketplace ingeridos por tipo y resultado.",
		}, []string{"kind", "outcome"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbs",
			Subsystem: "marketplace",
			Name:      "stale_events_total",
			Help:      "Eventos descartados por llegar fuera de orden.",
		}, []string{"marketplace", "kind"}),
	}
	for _, c := range []prometheus.Collector{p.ledgerOps, p.violations, p.ingest, p.stale} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) LedgerOperation(op, outcome string) {
	p.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (p *Prometheus) InvariantViolation(kind string) {
	p.violations.WithLabelValues(kind).Inc()
}

func (p *Prometheus) IngestOutcome(kind, outcome string) {
	p.ingest.WithLabelValues(kind, outcome).Inc()
}

func (p *Prometheus) StaleEvent(marketplaceID, kind string) {
	p.stale.WithLabelValues(marketplaceID, kind).Inc()
}
