package reservation

import (
	"context"
	"fmt"
	"sort"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Reglas por defecto: toda bodega propia o de fulfillment es elegible y la bodega
// indicada en el pedido va primero.
const (
	DefaultRule     = `warehouse.type != "marketplace" && warehouse.active`
	DefaultPriority = `warehouse.preferred ? 0 : 1`
)

// RoutingConfig expresiones expr-lang evaluadas por bodega.
// Rule debe devolver bool; Priority un número (menor = antes).
type RoutingConfig struct {
	Rule     string
	Priority string
}

// Snapshotter lectura no bloqueante del ledger.
type Snapshotter interface {
	Snapshot(ctx context.Context, unitID, productID string) (entity.StockEntry, error)
}

// Router elige ubicaciones candidatas para reservar una línea de pedido.
// Las lecturas son una foto: el ledger revalida al reservar.
type Router struct {
	warehouses repository.WarehouseRepository
	units      repository.StorageUnitRepository
	stock      Snapshotter
	rule       *exprvm.Program
	priority   *exprvm.Program
}

// NewRouter compila las expresiones de ruteo.
func NewRouter(cfg RoutingConfig, warehouses repository.WarehouseRepository, units repository.StorageUnitRepository, stock Snapshotter) (*Router, error) {
	if cfg.Rule == "" {
		cfg.Rule = DefaultRule
	}
	if cfg.Priority == "" {
		cfg.Priority = DefaultPriority
	}
	rule, err := compile(cfg.Rule)
	if err != nil {
		return nil, fmt.Errorf("regla de ruteo: %w", err)
	}
	priority, err := compile(cfg.Priority)
	if err != nil {
		return nil, fmt.Errorf("prioridad de ruteo: %w", err)
	}
	return &Router{warehouses: warehouses, units: units, stock: stock, rule: rule, priority: priority}, nil
}

func compile(expression string) (*exprvm.Program, error) {
	return exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
}

type rankedWarehouse struct {
	w     *entity.Warehouse
	score float64
}

// Warehouses bodegas elegibles para el pedido, en orden de preferencia.
func (r *Router) Warehouses(ctx context.Context, o *entity.Order) ([]*entity.Warehouse, error) {
	all, err := r.warehouses.ListByCompany(ctx, o.CompanyID)
	if err != nil {
		return nil, err
	}
	var ranked []rankedWarehouse
	for _, w := range all {
		env := routingEnv(o, w)
		ok, err := evalBool(r.rule, env)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		score, err := evalNumber(r.priority, env)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, rankedWarehouse{w: w, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].w.Name < ranked[j].w.Name
	})
	out := make([]*entity.Warehouse, len(ranked))
	for i, rw := range ranked {
		out[i] = rw.w
	}
	return out, nil
}

// Candidates ubicaciones con disponible suficiente para la línea completa, en orden de preferencia.
// Una línea nunca se reparte entre ubicaciones.
func (r *Router) Candidates(ctx context.Context, o *entity.Order, it entity.OrderItem) ([]string, error) {
	whs, err := r.Warehouses(ctx, o)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, w := range whs {
		units, err := r.units.ListByWarehouse(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		for _, u := range units {
			if !u.IsActive {
				continue
			}
			e, err := r.stock.Snapshot(ctx, u.ID, it.ProductID)
			if err != nil {
				return nil, err
			}
			if e.Available >= it.Quantity {
				out = append(out, u.ID)
			}
		}
	}
	return out, nil
}

func routingEnv(o *entity.Order, w *entity.Warehouse) map[string]any {
	total, _ := o.TotalPrice.Float64()
	return map[string]any{
		"warehouse": map[string]any{
			"id":        w.ID,
			"name":      w.Name,
			"type":      string(w.Type),
			"active":    w.IsActive,
			"preferred": o.ShippingWarehouseID != "" && o.ShippingWarehouseID == w.ID,
		},
		"order": map[string]any{
			"id":             o.ID,
			"marketplace_id": o.MarketplaceID,
			"total_price":    total,
			"items":          len(o.Items),
		},
	}
}

func evalBool(p *exprvm.Program, env map[string]any) (bool, error) {
	out, err := exprlang.Run(p, env)
	if err != nil {
		return false, fmt.Errorf("%w: regla de ruteo: %v", domain.ErrInvalidInput, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: la regla de ruteo devolvió %T", domain.ErrInvalidInput, out)
	}
	return b, nil
}

func evalNumber(p *exprvm.Program, env map[string]any) (float64, error) {
	out, err := exprlang.Run(p, env)
	if err != nil {
		return 0, fmt.Errorf("%w: prioridad de ruteo: %v", domain.ErrInvalidInput, err)
	}
	switch v := out.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("%w: la prioridad de ruteo devolvió %T", domain.ErrInvalidInput, out)
}
