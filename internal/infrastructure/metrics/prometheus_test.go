package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/infrastructure/metrics"
)

func TestPrometheus_CuentaOperaciones(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	m.LedgerOperation("reserve", "applied")
	m.LedgerOperation("reserve", "applied")
	m.LedgerOperation("reserve", "rejected")
	m.InvariantViolation("negative_quantity")

	expected := `
# HELP fbs_ledger_operations_total Operaciones del ledger por tipo y resultado.
# TYPE fbs_ledger_operations_total counter
fbs_ledger_operations_total{op="reserve",outcome="applied"} 2
fbs_ledger_operations_total{op="reserve",outcome="rejected"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fbs_ledger_operations_total"))
	n, err := testutil.GatherAndCount(reg, "fbs_ledger_invariant_violations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheus_RegistroDuplicado(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	_, err = metrics.NewPrometheus(reg)
	assert.Error(t, err)
}
