// Package storage modela la jerarquía de ubicaciones como un árbol acíclico en arena:
// los nodos viven en un slice y se referencian por índice.
package storage

import (
	"fmt"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// MaxDepth profundidad máxima permitida (la raíz de cada bodega tiene profundidad 0).
const MaxDepth = 16

const noParent = -1

type node struct {
	unit     entity.StorageUnit
	parent   int
	children []int
}

// Tree árbol de ubicaciones de una o más bodegas.
type Tree struct {
	nodes []node
	index map[string]int
}

// NewTree crea un árbol vacío.
func NewTree() *Tree {
	return &Tree{index: make(map[string]int)}
}

// BuildTree arma el árbol a partir de ubicaciones en cualquier orden.
// Devuelve ErrCycle si las referencias a padre forman un ciclo y ErrInvalidInput
// si algún padre no existe o pertenece a otra bodega.
func BuildTree(units []entity.StorageUnit) (*Tree, error) {
	t := NewTree()
	pending := make(map[string]entity.StorageUnit, len(units))
	for _, u := range units {
		if _, dup := pending[u.ID]; dup {
			return nil, fmt.Errorf("%w: ubicación %s repetida", domain.ErrInvalidInput, u.ID)
		}
		pending[u.ID] = u
	}
	for len(pending) > 0 {
		progressed := false
		for id, u := range pending {
			if u.ParentID != "" {
				if _, ok := t.index[u.ParentID]; !ok {
					continue
				}
			}
			if err := t.Insert(u); err != nil {
				return nil, err
			}
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			return nil, unresolved(pending)
		}
	}
	return t, nil
}

func unresolved(pending map[string]entity.StorageUnit) error {
	var missing string
	for id := range pending {
		seen := make(map[string]bool)
		for cur := id; ; {
			u, ok := pending[cur]
			if !ok {
				missing = cur
				break
			}
			if seen[cur] {
				return fmt.Errorf("%w: ubicación %s", domain.ErrCycle, cur)
			}
			seen[cur] = true
			cur = u.ParentID
		}
	}
	return fmt.Errorf("%w: padre %s no existe", domain.ErrInvalidInput, missing)
}

// Len cantidad de ubicaciones.
func (t *Tree) Len() int { return len(t.nodes) }

// Contains indica si la ubicación está en el árbol.
func (t *Tree) Contains(id string) bool {
	_, ok := t.index[id]
	return ok
}

// Unit devuelve la ubicación registrada.
func (t *Tree) Unit(id string) (entity.StorageUnit, bool) {
	i, ok := t.index[id]
	if !ok {
		return entity.StorageUnit{}, false
	}
	return t.nodes[i].unit, true
}

// Insert agrega una ubicación. El padre debe existir y ser de la misma bodega.
func (t *Tree) Insert(u entity.StorageUnit) error {
	if u.ID == "" || u.WarehouseID == "" {
		return fmt.Errorf("%w: ubicación sin id o bodega", domain.ErrInvalidInput)
	}
	if _, ok := t.index[u.ID]; ok {
		return fmt.Errorf("%w: ubicación %s", domain.ErrDuplicate, u.ID)
	}
	parent := noParent
	if u.ParentID != "" {
		if u.ParentID == u.ID {
			return fmt.Errorf("%w: %s es su propio padre", domain.ErrCycle, u.ID)
		}
		p, ok := t.index[u.ParentID]
		if !ok {
			return fmt.Errorf("%w: padre %s no existe", domain.ErrInvalidInput, u.ParentID)
		}
		if err := t.checkParent(p, u.WarehouseID, 0); err != nil {
			return err
		}
		parent = p
	}
	i := len(t.nodes)
	t.nodes = append(t.nodes, node{unit: u, parent: parent})
	t.index[u.ID] = i
	if parent != noParent {
		t.nodes[parent].children = append(t.nodes[parent].children, i)
	}
	return nil
}

// checkParent valida bodega y profundidad resultante de colgar un subárbol de altura h bajo p.
func (t *Tree) checkParent(p int, warehouseID string, h int) error {
	if t.nodes[p].unit.WarehouseID != warehouseID {
		return fmt.Errorf("%w: el padre pertenece a otra bodega", domain.ErrInvalidInput)
	}
	if t.depth(p)+1+h > MaxDepth {
		return fmt.Errorf("%w: profundidad máxima %d", domain.ErrInvalidInput, MaxDepth)
	}
	return nil
}

// Reparent mueve la ubicación id bajo newParentID ("" = raíz de su bodega).
// Rechaza con ErrCycle si el nuevo padre es la propia ubicación o uno de sus descendientes.
func (t *Tree) Reparent(id, newParentID string) error {
	i, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, id)
	}
	newParent := noParent
	if newParentID != "" {
		p, ok := t.index[newParentID]
		if !ok {
			return fmt.Errorf("%w: padre %s no existe", domain.ErrInvalidInput, newParentID)
		}
		if p == i || t.isAncestor(i, p) {
			return fmt.Errorf("%w: %s no puede colgar de %s", domain.ErrCycle, id, newParentID)
		}
		if err := t.checkParent(p, t.nodes[i].unit.WarehouseID, t.height(i)); err != nil {
			return err
		}
		newParent = p
	}
	if old := t.nodes[i].parent; old != noParent {
		t.nodes[old].children = removeIndex(t.nodes[old].children, i)
	}
	t.nodes[i].parent = newParent
	t.nodes[i].unit.ParentID = newParentID
	if newParent != noParent {
		t.nodes[newParent].children = append(t.nodes[newParent].children, i)
	}
	return nil
}

// isAncestor indica si a es ancestro de b.
func (t *Tree) isAncestor(a, b int) bool {
	for p := t.nodes[b].parent; p != noParent; p = t.nodes[p].parent {
		if p == a {
			return true
		}
	}
	return false
}

func (t *Tree) depth(i int) int {
	d := 0
	for p := t.nodes[i].parent; p != noParent; p = t.nodes[p].parent {
		d++
	}
	return d
}

func (t *Tree) height(i int) int {
	h := 0
	for _, c := range t.nodes[i].children {
		if ch := t.height(c) + 1; ch > h {
			h = ch
		}
	}
	return h
}

// Depth profundidad de la ubicación (0 = cuelga directamente de la bodega).
func (t *Tree) Depth(id string) (int, error) {
	i, ok := t.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: ubicación %s", domain.ErrNotFound, id)
	}
	return t.depth(i), nil
}

// Ancestors ids de los ancestros, del padre hacia la raíz.
func (t *Tree) Ancestors(id string) []string {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []string
	for p := t.nodes[i].parent; p != noParent; p = t.nodes[p].parent {
		out = append(out, t.nodes[p].unit.ID)
	}
	return out
}

// Subtree ids de la ubicación y todos sus descendientes (preorden).
func (t *Tree) Subtree(id string) []string {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	var out []string
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, t.nodes[n].unit.ID)
		for c := len(t.nodes[n].children) - 1; c >= 0; c-- {
			stack = append(stack, t.nodes[n].children[c])
		}
	}
	return out
}

// Roots ubicaciones sin padre de la bodega.
func (t *Tree) Roots(warehouseID string) []string {
	var out []string
	for _, n := range t.nodes {
		if n.parent == noParent && n.unit.WarehouseID == warehouseID {
			out = append(out, n.unit.ID)
		}
	}
	return out
}

func removeIndex(s []int, v int) []int {
	for k, x := range s {
		if x == v {
			return append(s[:k], s[k+1:]...)
		}
	}
	return s
}
