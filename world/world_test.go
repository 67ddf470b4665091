package world

import (
	"path/filepath"
	"testing"

	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/world/chunk"
	"github.com/dragonkeep/server/world/gen"
)

func newTestStreamer(t *testing.T) *Streamer {
	t.Helper()
	return NewStreamer(Config{
		LoadRadius:       1,
		UnloadRadius:     2,
		GenBudgetPerTick: 100,
		Gen:              gen.New(99),
		Provider:         NewMemProvider(),
	})
}

func TestTickLoadsChunksWithinRadius(t *testing.T) {
	s := newTestStreamer(t)
	s.SetObserver(1, chunk.Coord{})

	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := s.resident[chunk.Coord{}]; !ok {
		t.Fatalf("expected the observer's own chunk to be resident")
	}
}

func TestTickEvictsChunksOutsideUnloadRadius(t *testing.T) {
	s := newTestStreamer(t)
	s.SetObserver(1, chunk.Coord{})
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(s.resident) == 0 {
		t.Fatalf("expected some resident chunks before moving the observer")
	}

	s.SetObserver(1, chunk.Coord{X: 100, Z: 100})
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := s.resident[chunk.Coord{}]; ok {
		t.Fatalf("expected the origin chunk to be evicted after the observer moved far away")
	}
}

func TestApplyModificationPersistsAcrossEviction(t *testing.T) {
	s := newTestStreamer(t)
	coord := chunk.Coord{}
	s.SetObserver(1, coord)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := s.ApplyModification(coord, 0, 1, 0, 77, 5); err != nil {
		t.Fatalf("ApplyModification: %v", err)
	}

	if err := s.evict(coord); err != nil {
		t.Fatalf("evict: %v", err)
	}
	reloaded, err := s.ChunkAt(coord)
	if err != nil {
		t.Fatalf("ChunkAt: %v", err)
	}
	if got := reloaded.Block(0, 1, 0); got != 77 {
		t.Fatalf("expected modification to survive eviction/reload, got %d", got)
	}
}

func TestWorldToLocalRoundTrips(t *testing.T) {
	cases := []struct {
		x, y, z int
	}{
		{0, 0, 0}, {15, 5, 15}, {16, 5, 16}, {-1, 5, -1}, {-17, 5, -17},
	}
	for _, c := range cases {
		coord, lx, ly, lz := WorldToLocal(c.x, c.y, c.z)
		if lx < 0 || lx >= chunkSizeX || lz < 0 || lz >= chunkSizeZ {
			t.Fatalf("WorldToLocal(%d,%d,%d) produced out-of-range local coords (%d,%d)", c.x, c.y, c.z, lx, lz)
		}
		if ly != c.y {
			t.Fatalf("WorldToLocal(%d,%d,%d) changed y to %d", c.x, c.y, c.z, ly)
		}
		gotX := int(coord.X)*chunkSizeX + lx
		gotZ := int(coord.Z)*chunkSizeZ + lz
		if gotX != c.x || gotZ != c.z {
			t.Fatalf("WorldToLocal(%d,%d,%d) does not round-trip: coord=%+v local=(%d,%d,%d)", c.x, c.y, c.z, coord, lx, ly, lz)
		}
	}
}

func TestBlockAtWorldAndSetBlockAtWorld(t *testing.T) {
	s := newTestStreamer(t)
	if err := s.SetBlockAtWorld(5, 10, 5, 42, 1); err != nil {
		t.Fatalf("SetBlockAtWorld: %v", err)
	}
	got, err := s.BlockAtWorld(5, 10, 5)
	if err != nil {
		t.Fatalf("BlockAtWorld: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected block 42 at (5,10,5), got %d", got)
	}
}

func TestApplyModificationIsDurable(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.Open(wal.Config{Path: filepath.Join(dir, "world.wal")})
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	defer w.Close()

	s := NewStreamer(Config{
		LoadRadius:       1,
		UnloadRadius:     2,
		GenBudgetPerTick: 100,
		Gen:              gen.New(1),
		Provider:         NewMemProvider(),
		WAL:              w,
	})
	coord := chunk.Coord{}
	if _, err := s.ChunkAt(coord); err != nil {
		t.Fatalf("ChunkAt: %v", err)
	}
	if err := s.ApplyModification(coord, 2, 5, 2, 11, 1); err != nil {
		t.Fatalf("ApplyModification: %v", err)
	}

	ops, _, err := wal.Recover(filepath.Join(dir, "world.wal"))
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected one recovered block-modification op, got %d", len(ops))
	}
	gotCoord, x, y, z, id, tick, ok := decodeBlockModify(ops[0].Payload)
	if !ok || gotCoord != coord || x != 2 || y != 5 || z != 2 || id != 11 || tick != 1 {
		t.Fatalf("recovered op does not match applied modification: %+v %v %v %v %v %v %v", gotCoord, x, y, z, id, tick, ok)
	}
}
