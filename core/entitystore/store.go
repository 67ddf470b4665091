package entitystore

// Store is a single snapshot of world entity state: one Moving table and one
// Static table. A DoubleBuffer holds two Stores and arbitrates access to
// them; Store itself has no concurrency control of its own and is plain
// data guarded by whatever holds it.
type Store struct {
	Moving *MovingTable
	Static *StaticTable
}

// Capacities bundles the pre-allocated row counts for the two archetype
// tables.
type Capacities struct {
	Moving int
	Static int
}

func newStore(cap Capacities) *Store {
	return &Store{
		Moving: newMovingTable(cap.Moving),
		Static: newStaticTable(cap.Static),
	}
}

// dirtyCopyFrom copies every row that src marks dirty into the receiver,
// then clears src's dirty bitmap. This is the core of the Dirty Copy
// algorithm: O(dirty_count) memory traffic instead of O(N).
func (s *Store) dirtyCopyFrom(src *Store) int {
	n := 0
	for _, row := range src.Moving.dirty.Rows() {
		s.Moving.copyRow(src.Moving, row)
		n++
	}
	src.Moving.dirty.Clear()
	for _, row := range src.Static.dirty.Rows() {
		s.Static.copyRow(src.Static, row)
		n++
	}
	src.Static.dirty.Clear()
	return n
}

// fullSyncFrom makes every row of the receiver identical to src, used once
// at startup to equalize the two buffers before any ticking begins.
func (s *Store) fullSyncFrom(src *Store) {
	for i := 0; i < src.Moving.len; i++ {
		s.Moving.copyRow(src.Moving, uint32(i))
	}
	s.Moving.len = src.Moving.len
	s.Moving.free = append(s.Moving.free[:0], src.Moving.free...)
	s.Moving.dirty.Clear()
	for i := 0; i < src.Static.len; i++ {
		s.Static.copyRow(src.Static, uint32(i))
	}
	s.Static.len = src.Static.len
	s.Static.free = append(s.Static.free[:0], src.Static.free...)
	s.Static.dirty.Clear()
}

// Equal reports whether s and o are bitwise-identical on every allocated
// row of both tables. It is used by tests and by VerifyBuffers to confirm
// the double buffer converges after an idle frame.
func (s *Store) Equal(o *Store) bool {
	return s.Moving.equal(o.Moving) && s.Static.equal(o.Static)
}

// Checksum folds both tables' rows into a single fnv1a hash, letting a
// caller compare two Stores in O(N) without materializing a boolean
// column-by-column diff first.
func (s *Store) Checksum() uint64 {
	return s.Moving.checksum() ^ (s.Static.checksum()*0x9E3779B97F4A7C15 + 1)
}
