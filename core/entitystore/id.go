package entitystore

// EntityId is an opaque 64-bit handle: a 32-bit slot index packed with a
// 32-bit generation counter. An id is valid iff the slot's current
// generation equals the id's generation, which is what makes despawn +
// respawn into the same slot produce a distinguishable identity (the stale
// id never dereferences a live entity of a different identity).
//
// The top bit of the index half selects which of the two archetype tables
// the id belongs to (Moving or Static), so a given EntityId always lives in
// exactly one table; migration between tables is not supported once spawned.
type EntityId uint64

const tableBit uint32 = 1 << 31

// Table identifies which columnar archetype an EntityId belongs to.
type Table uint8

const (
	// Moving identifies the P+V (position/velocity) archetype table.
	Moving Table = iota
	// Static identifies the P-only archetype table.
	Static
)

func newEntityId(table Table, index, generation uint32) EntityId {
	if table == Static {
		index |= tableBit
	}
	return EntityId(uint64(index)<<32 | uint64(generation))
}

// index returns the raw slot index, including the table-selector bit.
func (id EntityId) index() uint32 { return uint32(id >> 32) }

// generation returns the generation half of the id.
func (id EntityId) generation() uint32 { return uint32(id) }

// Table reports which archetype table id refers to.
func (id EntityId) Table() Table {
	if id.index()&tableBit != 0 {
		return Static
	}
	return Moving
}

// slot returns the table-local slot index, with the selector bit stripped.
func (id EntityId) slot() uint32 { return id.index() &^ tableBit }

// IsZero reports whether id is the zero value. The first entity spawned
// into slot 0 of the Moving table (generation 0) also has this id, so a
// zero id can name a live entity.
func (id EntityId) IsZero() bool { return id == 0 }
