package entitystore

import "testing"

// TestSingleEntityRoundTrip exercises scenario 1: spawn a moving entity,
// release the writer, swap, and confirm the reader observes it.
func TestSingleEntityRoundTrip(t *testing.T) {
	db := New(Capacities{Moving: 1000, Static: 0})

	w, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter: %v", err)
	}
	id, _ := w.Store().Moving.Spawn(MovingRow{PosX: 1, PosY: 2, PosZ: 3})
	w.Release()

	db.Swap()

	r := db.AcquireReader()
	defer r.Release()
	if r.Store().Moving.Len() != 1 {
		t.Fatalf("expected exactly one moving entity, got %d", r.Store().Moving.Len())
	}
	row, err := r.Store().Moving.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.PosX != 1 || row.PosY != 2 || row.PosZ != 3 {
		t.Fatalf("unexpected position: %+v", row)
	}
}

// TestDirtyCopyCorrectness exercises scenario 2: spawning 1000 entities and
// mutating exactly one per frame must only propagate that one row across
// swaps, while every other row stays put.
func TestDirtyCopyCorrectness(t *testing.T) {
	db := New(Capacities{Moving: 1000, Static: 0})

	w, _ := db.AcquireWriter()
	ids := make([]EntityId, 1000)
	for i := 0; i < 1000; i++ {
		ids[i], _ = w.Store().Moving.Spawn(MovingRow{PosX: float32(i)})
	}
	w.Release()
	db.Swap() // equalize both buffers with the spawned population

	// Frame A: move only entity 500.
	w, _ = db.AcquireWriter()
	if err := w.Store().Moving.SetPosition(ids[500], 500, 1, 0); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	w.Release()
	dirty := db.Swap()
	if dirty != 1 {
		t.Fatalf("expected exactly 1 dirty row copied, got %d", dirty)
	}

	// Frame B: no writes.
	w, _ = db.AcquireWriter()
	w.Release()
	dirty = db.Swap()
	if dirty != 0 {
		t.Fatalf("expected 0 dirty rows on an idle frame, got %d", dirty)
	}
	if !db.VerifyBuffers() {
		t.Fatal("buffers must be bitwise-equal after an idle frame")
	}

	// Frame C: read back.
	r := db.AcquireReader()
	defer r.Release()
	row500, err := r.Store().Moving.Get(ids[500])
	if err != nil {
		t.Fatalf("Get(500): %v", err)
	}
	if row500.PosX != 500 || row500.PosY != 1 {
		t.Fatalf("entity 500 expected (500,1,0), got %+v", row500)
	}
	row499, err := r.Store().Moving.Get(ids[499])
	if err != nil {
		t.Fatalf("Get(499): %v", err)
	}
	if row499.PosX != 499 || row499.PosY != 0 {
		t.Fatalf("entity 499 expected (499,0,0), got %+v", row499)
	}
}

func TestWriterExclusivity(t *testing.T) {
	db := New(Capacities{Moving: 10, Static: 0})
	w1, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("first AcquireWriter: %v", err)
	}
	if _, err := db.AcquireWriter(); err == nil {
		t.Fatal("expected second AcquireWriter to fail with AlreadyLocked")
	}
	w1.Release()
	w2, err := db.AcquireWriter()
	if err != nil {
		t.Fatalf("AcquireWriter after release: %v", err)
	}
	w2.Release()
}

func TestSwapWhileWriterLivePanics(t *testing.T) {
	db := New(Capacities{Moving: 10, Static: 0})
	w, _ := db.AcquireWriter()
	defer w.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Swap to panic while a writer handle is live")
		}
	}()
	db.Swap()
}

func TestEntityIdGenerationInvalidation(t *testing.T) {
	db := New(Capacities{Moving: 4, Static: 0})
	w, _ := db.AcquireWriter()
	defer w.Release()

	id, slot := w.Store().Moving.Spawn(MovingRow{PosX: 1})
	w.Store().Moving.Despawn(slot)
	newID, newSlot := w.Store().Moving.Spawn(MovingRow{PosX: 2})

	if slot != newSlot {
		t.Fatalf("expected slot reuse, got %d then %d", slot, newSlot)
	}
	if id == newID {
		t.Fatal("respawning into the same slot must yield a different id")
	}
	if _, err := w.Store().Moving.Get(id); err == nil {
		t.Fatal("stale id must not resolve after respawn")
	}
	row, err := w.Store().Moving.Get(newID)
	if err != nil {
		t.Fatalf("Get(newID): %v", err)
	}
	if row.PosX != 2 {
		t.Fatalf("expected respawned row to hold new data, got %+v", row)
	}
}
