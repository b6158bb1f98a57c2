package ledger_test

import (
	"errors"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/ledger"
)

const (
	testUnit    = "unit-1"
	testProduct = "prod-1"
)

func entry(available, reserved, inTransit int64) entity.StockEntry {
	return entity.StockEntry{
		StorageUnitID: testUnit,
		ProductID:     testProduct,
		Available:     available,
		Reserved:      reserved,
		InTransit:     inTransit,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Precondiciones por operación
// ──────────────────────────────────────────────────────────────────────────────

func TestPlan_ReserveMueveDisponibleAReservado(t *testing.T) {
	d, err := ledger.Plan(entry(10, 0, 0), ledger.OpReserve, 4)
	require.NoError(t, err)
	assert.Equal(t, ledger.Delta{Available: -4, Reserved: 4}, d)
}

func TestPlan_ReserveSinDisponibleFalla(t *testing.T) {
	_, err := ledger.Plan(entry(3, 5, 2), ledger.OpReserve, 4)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestPlan_CantidadNoPositivaEsEntradaInvalida(t *testing.T) {
	for _, op := range []ledger.Op{ledger.OpReserve, ledger.OpRelease, ledger.OpShip, ledger.OpReceiveExternal} {
		_, err := ledger.Plan(entry(10, 10, 10), op, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "op %s", op)
		_, err = ledger.Plan(entry(10, 10, 10), op, -1)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "op %s", op)
	}
}

func TestPlan_Tabla(t *testing.T) {
	cases := []struct {
		name    string
		op      ledger.Op
		start   entity.StockEntry
		qty     int64
		want    ledger.Delta
		wantErr error
	}{
		{"release", ledger.OpRelease, entry(0, 5, 0), 5, ledger.Delta{Available: 5, Reserved: -5}, nil},
		{"release sin reservado", ledger.OpRelease, entry(9, 1, 0), 2, ledger.Delta{}, domain.ErrInsufficientStock},
		{"commit en tránsito", ledger.OpCommitInTransit, entry(0, 0, 0), 7, ledger.Delta{InTransit: 7}, nil},
		{"cancel en tránsito", ledger.OpCancelInTransit, entry(0, 0, 7), 3, ledger.Delta{InTransit: -3}, nil},
		{"cancel excedido", ledger.OpCancelInTransit, entry(0, 0, 2), 3, ledger.Delta{}, domain.ErrInsufficientStock},
		{"recibir tránsito", ledger.OpReceiveInTransit, entry(1, 0, 5), 5, ledger.Delta{Available: 5, InTransit: -5}, nil},
		{"recibir tránsito excedido", ledger.OpReceiveInTransit, entry(1, 0, 5), 6, ledger.Delta{}, domain.ErrInsufficientStock},
		{"recibir externo", ledger.OpReceiveExternal, entry(0, 0, 0), 8, ledger.Delta{Available: 8}, nil},
		{"ship", ledger.OpShip, entry(0, 4, 0), 4, ledger.Delta{Reserved: -4}, nil},
		{"ship sin reservado", ledger.OpShip, entry(10, 0, 0), 1, ledger.Delta{}, domain.ErrInsufficientStock},
		{"ajuste positivo", ledger.OpAdjust, entry(2, 0, 0), 5, ledger.Delta{Available: 5}, nil},
		{"ajuste negativo", ledger.OpAdjust, entry(10, 0, 0), -3, ledger.Delta{Available: -3}, nil},
		{"ajuste bajo cero", ledger.OpAdjust, entry(2, 8, 0), -3, ledger.Delta{}, domain.ErrNegativeQuantity},
		{"ajuste en cero", ledger.OpAdjust, entry(2, 0, 0), 0, ledger.Delta{}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ledger.Plan(tc.start, tc.op, tc.qty)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, d)
		})
	}
}

func TestOp_Causa(t *testing.T) {
	assert.Equal(t, entity.CauseReceive, ledger.OpReceiveExternal.Cause())
	assert.Equal(t, entity.CauseReceive, ledger.OpReceiveInTransit.Cause())
	assert.Equal(t, entity.CauseShip, ledger.OpShip.Cause())
	assert.Equal(t, entity.CauseAdjust, ledger.OpAdjust.Cause())
}

func TestApply_RechazaBucketNegativo(t *testing.T) {
	_, err := ledger.Apply(entry(1, 0, 0), ledger.Delta{Available: -2})
	assert.ErrorIs(t, err, domain.ErrNegativeQuantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// Invariante: cualquier secuencia de operaciones deja buckets >= 0 y
// la entrada coincide con el plegado de sus movimientos.
// ──────────────────────────────────────────────────────────────────────────────

func TestInvariante_SecuenciasAleatorias(t *testing.T) {
	ops := []ledger.Op{
		ledger.OpReserve, ledger.OpRelease, ledger.OpCommitInTransit, ledger.OpCancelInTransit,
		ledger.OpReceiveInTransit, ledger.OpReceiveExternal, ledger.OpShip, ledger.OpAdjust,
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		e := entry(0, 0, 0)
		var log []entity.StockMovement

		for step := 0; step < 200; step++ {
			op := ops[rng.Intn(len(ops))]
			qty := int64(rng.Intn(20) + 1)
			if op == ledger.OpAdjust && rng.Intn(2) == 0 {
				qty = -qty
			}
			d, err := ledger.Plan(e, op, qty)
			if err != nil {
				rejected := errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrNegativeQuantity)
				assert.True(t, rejected, "seed %d: error inesperado %v", seed, err)
				continue
			}
			next, err := ledger.Apply(e, d)
			require.NoError(t, err, "seed %d paso %d: un plan válido no debe romper el invariante", seed, step)
			e = next
			log = append(log, entity.StockMovement{
				ID:             strconv.Itoa(step),
				StorageUnitID:  testUnit,
				ProductID:      testProduct,
				Cause:          op.Cause(),
				DeltaAvailable: d.Available,
				DeltaReserved:  d.Reserved,
				DeltaInTransit: d.InTransit,
				CreatedAt:      base.Add(time.Duration(step) * time.Second),
			})
			require.True(t, e.NonNegative(), "seed %d paso %d", seed, step)
		}

		folded, err := ledger.Fold(testUnit, testProduct, log)
		require.NoError(t, err)
		assert.True(t, ledger.Equal(e, folded), "seed %d: fold %+v != entrada %+v", seed, folded, e)
		assert.Equal(t, int64(len(log)), folded.Version)
	}
}

func TestFold_IgnoraOtrasClaves(t *testing.T) {
	movs := []entity.StockMovement{
		{ID: "1", StorageUnitID: testUnit, ProductID: testProduct, DeltaAvailable: 10},
		{ID: "2", StorageUnitID: "otra", ProductID: testProduct, DeltaAvailable: 99},
		{ID: "3", StorageUnitID: testUnit, ProductID: testProduct, DeltaAvailable: -4, DeltaReserved: 4},
	}
	e, err := ledger.Fold(testUnit, testProduct, movs)
	require.NoError(t, err)
	assert.Equal(t, int64(6), e.Available)
	assert.Equal(t, int64(4), e.Reserved)
	assert.Equal(t, int64(10), e.Total())
}

func TestFold_LogCorruptoDetectaNegativo(t *testing.T) {
	movs := []entity.StockMovement{
		{ID: "1", StorageUnitID: testUnit, ProductID: testProduct, DeltaReserved: -1},
	}
	_, err := ledger.Fold(testUnit, testProduct, movs)
	assert.ErrorIs(t, err, domain.ErrNegativeQuantity)
}
