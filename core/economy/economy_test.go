package economy

import (
	"path/filepath"
	"testing"

	"github.com/dragonkeep/server/core/entitystore"
	"github.com/dragonkeep/server/core/loot"
	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/geom"
	"github.com/dragonkeep/server/metrics"
	"github.com/dragonkeep/server/world"
	"github.com/dragonkeep/server/world/gen"
	"github.com/google/uuid"
)

func newTestEconomy(t *testing.T) (*Economy, *world.Streamer, *wal.WAL, string) {
	t.Helper()
	dir := t.TempDir()
	walPath := filepath.Join(dir, "economy.wal")
	w, err := wal.Open(wal.Config{Path: walPath})
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	streamer := world.NewStreamer(world.Config{
		LoadRadius:       1,
		UnloadRadius:     2,
		GenBudgetPerTick: 100,
		Gen:              gen.New(7),
		Provider:         world.NewMemProvider(),
		WAL:              w,
	})

	lootEngine, err := loot.NewEngine(loot.Config{Tables: loot.DefaultPrecomputed(), BaseRateBp: 10000})
	if err != nil {
		t.Fatalf("loot.NewEngine: %v", err)
	}
	tables := loot.NewRegistry()
	tables.Register(7, loot.Common, []loot.Entry{
		{ItemID: 100, Weight: 1, MinQty: 1, MaxQty: 1, Rarity: loot.Common},
	})

	econ := New(Config{
		Loot:       lootEngine,
		Tables:     tables,
		WAL:        w,
		World:      streamer,
		Metrics:    metrics.New(),
		AirBlockID: 0,
	})
	return econ, streamer, w, walPath
}

func TestResolveBreakBlockBreaksAndGrantsLoot(t *testing.T) {
	econ, streamer, _, walPath := newTestEconomy(t)
	if err := streamer.SetBlockAtWorld(1, 64, 1, 7, 1); err != nil {
		t.Fatalf("SetBlockAtWorld: %v", err)
	}

	db := entitystore.New(entitystore.Capacities{Moving: 4, Static: 4})
	wh, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter: %v", err)
	}
	defer wh.Release()

	client := uuid.New()
	result, err := econ.ResolveBreakBlock(wh, client, geom.Pos{1, 64, 1}, 0)
	if err != nil {
		t.Fatalf("ResolveBreakBlock: %v", err)
	}
	if !result.Broken {
		t.Fatalf("expected the block to be broken")
	}
	if result.ItemID != 100 || result.Quantity != 1 {
		t.Fatalf("expected a granted drop of item 100 x1, got %+v", result)
	}

	got, err := streamer.BlockAtWorld(1, 64, 1)
	if err != nil {
		t.Fatalf("BlockAtWorld: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected the block to be air after breaking, got %d", got)
	}

	ops, _, err := wal.Recover(walPath)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	var sawBreakEvent bool
	for _, op := range ops {
		gotClient, pos, blockID, itemID, qty, hit, ok := decodeBreakEvent(op.Payload)
		if !ok {
			continue
		}
		sawBreakEvent = true
		if gotClient != client || pos != (geom.Pos{1, 64, 1}) || blockID != 7 || itemID != 100 || qty != 1 || !hit {
			t.Fatalf("recovered break event does not match: client=%v pos=%v block=%v item=%v qty=%v hit=%v", gotClient, pos, blockID, itemID, qty, hit)
		}
	}
	if !sawBreakEvent {
		t.Fatalf("expected a recoverable break event in the WAL")
	}
}

func TestResolveBreakBlockOnAirIsNoop(t *testing.T) {
	econ, _, _, _ := newTestEconomy(t)
	db := entitystore.New(entitystore.Capacities{Moving: 4, Static: 4})
	wh, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter: %v", err)
	}
	defer wh.Release()

	result, err := econ.ResolveBreakBlock(wh, uuid.New(), geom.Pos{50, 64, 50}, 0)
	if err != nil {
		t.Fatalf("ResolveBreakBlock: %v", err)
	}
	if result.Broken {
		t.Fatalf("expected no-op result for an air block, got %+v", result)
	}
}

func TestResolveAttackAgainstLiveAndStaleTarget(t *testing.T) {
	econ, _, _, _ := newTestEconomy(t)
	db := entitystore.New(entitystore.Capacities{Moving: 4, Static: 4})
	wh, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter: %v", err)
	}
	defer wh.Release()

	target, slot := wh.Store().Moving.Spawn(entitystore.MovingRow{Health: 20})
	result, err := econ.ResolveAttack(wh, uuid.New(), target)
	if err != nil {
		t.Fatalf("ResolveAttack: %v", err)
	}
	if !result.Hit || result.Target != target {
		t.Fatalf("expected a hit against a live target, got %+v", result)
	}

	wh.Store().Moving.Despawn(slot)
	result, err = econ.ResolveAttack(wh, uuid.New(), target)
	if err != nil {
		t.Fatalf("ResolveAttack against stale target: %v", err)
	}
	if result.Hit {
		t.Fatalf("expected no hit against a despawned target, got %+v", result)
	}
}
