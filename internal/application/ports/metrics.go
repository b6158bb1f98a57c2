package ports

// Metrics puerto de observabilidad del núcleo. El adaptador Prometheus vive en infraestructura;
// NopMetrics sirve para tests y para despliegues sin /metrics.
type Metrics interface {
	// LedgerOperation cuenta operaciones del ledger por tipo y resultado (applied, replayed, rejected, error).
	LedgerOperation(op, outcome string)
	// InvariantViolation cuenta señales de bug: cantidades negativas, ledger que no cuadra con su historial.
	InvariantViolation(kind string)
	// IngestOutcome cuenta eventos de marketplace por tipo (order, listing) y resultado.
	IngestOutcome(kind, outcome string)
	// StaleEvent cuenta eventos descartados por llegar fuera de orden.
	StaleEvent(marketplaceID, kind string)
}

// NopMetrics implementación vacía de Metrics.
type NopMetrics struct{}

func (NopMetrics) LedgerOperation(string, string) {}
func (NopMetrics) InvariantViolation(string)      {}
func (NopMetrics) IngestOutcome(string, string)   {}
func (NopMetrics) StaleEvent(string, string)      {}
