package recipe

import (
	"testing"

	"github.com/dragonkeep/server/errs"
)

func TestGraphAcceptsDAG(t *testing.T) {
	g := NewGraph()
	g.Register(Recipe{ID: 1, Inputs: []Stack{{ItemID: 10, Qty: 1}}, Outputs: []Stack{{ItemID: 20, Qty: 1}}})
	g.Register(Recipe{ID: 2, Inputs: []Stack{{ItemID: 20, Qty: 1}}, Outputs: []Stack{{ItemID: 30, Qty: 1}}})

	order := g.TopologicalOrder()
	pos := make(map[uint32]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos[1] >= pos[2] {
		t.Fatalf("expected recipe 1 (producer) before recipe 2 (consumer), got order %v", order)
	}
}

func TestRegisterDetectsCycle(t *testing.T) {
	g := NewGraph()
	g.Register(Recipe{ID: 1, Inputs: []Stack{{ItemID: 10, Qty: 1}}, Outputs: []Stack{{ItemID: 20, Qty: 1}}})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Register to panic on a cycle-creating recipe")
		}
		if _, err := g.Lookup(2); !errs.Is(err, errs.NotFound) {
			t.Fatalf("expected the cycle-creating recipe to be rolled back, lookup err = %v", err)
		}
	}()
	// Recipe 2 consumes item 20 (produced by 1) and produces item 10
	// (consumed by 1): a cycle.
	g.Register(Recipe{ID: 2, Inputs: []Stack{{ItemID: 20, Qty: 1}}, Outputs: []Stack{{ItemID: 10, Qty: 1}}})
}

type fakeInventory struct {
	counts map[uint32]uint32
}

func (f *fakeInventory) Count(id uint32) uint32 { return f.counts[id] }
func (f *fakeInventory) Remove(id uint32, qty uint32) error {
	f.counts[id] -= qty
	return nil
}
func (f *fakeInventory) Grant(id uint32, qty uint32) error {
	f.counts[id] += qty
	return nil
}

func TestCraftInsufficientMaterials(t *testing.T) {
	g := NewGraph()
	g.Register(Recipe{ID: 1, Inputs: []Stack{{ItemID: 10, Qty: 4}}, Outputs: []Stack{{ItemID: 20, Qty: 1}}})
	inv := &fakeInventory{counts: map[uint32]uint32{10: 1}}

	_, err := g.Craft(1, inv, 0)
	if !errs.Is(err, errs.InsufficientMaterials) {
		t.Fatalf("expected InsufficientMaterials, got %v", err)
	}
}

func TestCraftLevelTooLow(t *testing.T) {
	g := NewGraph()
	g.Register(Recipe{ID: 1, RequiredLevel: 10, Inputs: []Stack{{ItemID: 10, Qty: 1}}, Outputs: []Stack{{ItemID: 20, Qty: 1}}})
	inv := &fakeInventory{counts: map[uint32]uint32{10: 1}}

	_, err := g.Craft(1, inv, 1)
	if !errs.Is(err, errs.LevelTooLow) {
		t.Fatalf("expected LevelTooLow, got %v", err)
	}
}

func TestCraftSucceeds(t *testing.T) {
	g := NewGraph()
	g.Register(Recipe{ID: 1, Inputs: []Stack{{ItemID: 10, Qty: 2}}, Outputs: []Stack{{ItemID: 20, Qty: 3}}})
	inv := &fakeInventory{counts: map[uint32]uint32{10: 5}}

	if _, err := g.Craft(1, inv, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.counts[10] != 3 {
		t.Fatalf("expected 3 remaining input items, got %d", inv.counts[10])
	}
	if inv.counts[20] != 3 {
		t.Fatalf("expected 3 output items granted, got %d", inv.counts[20])
	}
}
