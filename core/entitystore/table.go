package entitystore

import (
	"math"

	"github.com/dragonkeep/server/errs"
	"github.com/segmentio/fasthash/fnv1a"
)

// TypeTag identifies the gameplay type of an entity (player, zombie, dragon,
// item drop, etc.) without the store needing to know the full type
// registry; collaborators above the store interpret the tag.
type TypeTag uint16

// MovingRow is one row of the P+V archetype: position, velocity, health, and
// a type tag, addressed column-wise in MovingTable.
type MovingRow struct {
	PosX, PosY, PosZ float32
	VelX, VelY, VelZ float32
	Health           uint32
	Type             TypeTag
}

// StaticRow is one row of the P-only archetype.
type StaticRow struct {
	PosX, PosY, PosZ float32
	Type             TypeTag
}

// MovingTable is the columnar store for entities with position and
// velocity. Columns are parallel slices indexed by slot so that iterating a
// single column (e.g. for broad-phase physics) touches only the cache lines
// that column occupies.
type MovingTable struct {
	posX, posY, posZ []float32
	velX, velY, velZ []float32
	health           []uint32
	typ              []TypeTag
	generation       []uint32
	alive            []bool

	free  []uint32
	dirty *dirtyBitmap
	len   int
}

func newMovingTable(capacity int) *MovingTable {
	return &MovingTable{
		posX: make([]float32, capacity), posY: make([]float32, capacity), posZ: make([]float32, capacity),
		velX: make([]float32, capacity), velY: make([]float32, capacity), velZ: make([]float32, capacity),
		health:     make([]uint32, capacity),
		typ:        make([]TypeTag, capacity),
		generation: make([]uint32, capacity),
		alive:      make([]bool, capacity),
		dirty:      newDirtyBitmap(capacity),
	}
}

// Capacity returns the pre-allocated row count.
func (t *MovingTable) Capacity() int { return len(t.posX) }

// Spawn allocates a row (reusing a despawned slot if one is free) and
// returns the resulting id. The row's generation is the slot's current
// generation: despawning and respawning into the same slot always advances
// the generation first, so the returned id is never reused while a prior
// id for the same slot could still be considered valid.
func (t *MovingTable) Spawn(row MovingRow) (EntityId, uint32) {
	var slot uint32
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		slot = uint32(t.len)
		t.len++
	}
	t.posX[slot], t.posY[slot], t.posZ[slot] = row.PosX, row.PosY, row.PosZ
	t.velX[slot], t.velY[slot], t.velZ[slot] = row.VelX, row.VelY, row.VelZ
	t.health[slot] = row.Health
	t.typ[slot] = row.Type
	t.alive[slot] = true
	t.dirty.Mark(slot)
	return newEntityId(Moving, slot, t.generation[slot]), slot
}

// Despawn frees slot and bumps its generation so any previously issued id
// referencing it becomes stale.
func (t *MovingTable) Despawn(slot uint32) {
	if !t.alive[slot] {
		return
	}
	t.alive[slot] = false
	t.generation[slot]++
	t.free = append(t.free, slot)
	t.dirty.Mark(slot)
}

// validate reports whether id's generation matches the slot's current
// generation and the slot is alive.
func (t *MovingTable) validate(id EntityId) (uint32, bool) {
	slot := id.slot()
	if int(slot) >= t.len || !t.alive[slot] || t.generation[slot] != id.generation() {
		return 0, false
	}
	return slot, true
}

// Get reads the row for id. Returns errs.NotFound if id is stale or unknown.
func (t *MovingTable) Get(id EntityId) (MovingRow, error) {
	slot, ok := t.validate(id)
	if !ok {
		return MovingRow{}, errs.New("entitystore.MovingTable.Get", errs.NotFound)
	}
	return MovingRow{
		PosX: t.posX[slot], PosY: t.posY[slot], PosZ: t.posZ[slot],
		VelX: t.velX[slot], VelY: t.velY[slot], VelZ: t.velZ[slot],
		Health: t.health[slot], Type: t.typ[slot],
	}, nil
}

// SetPosition writes a new position for id and marks its row dirty.
func (t *MovingTable) SetPosition(id EntityId, x, y, z float32) error {
	slot, ok := t.validate(id)
	if !ok {
		return errs.New("entitystore.MovingTable.SetPosition", errs.NotFound)
	}
	t.posX[slot], t.posY[slot], t.posZ[slot] = x, y, z
	t.dirty.Mark(slot)
	return nil
}

// SetVelocity writes a new velocity for id and marks its row dirty.
func (t *MovingTable) SetVelocity(id EntityId, x, y, z float32) error {
	slot, ok := t.validate(id)
	if !ok {
		return errs.New("entitystore.MovingTable.SetVelocity", errs.NotFound)
	}
	t.velX[slot], t.velY[slot], t.velZ[slot] = x, y, z
	t.dirty.Mark(slot)
	return nil
}

// SetHealth writes a new health value for id and marks its row dirty.
func (t *MovingTable) SetHealth(id EntityId, health uint32) error {
	slot, ok := t.validate(id)
	if !ok {
		return errs.New("entitystore.MovingTable.SetHealth", errs.NotFound)
	}
	t.health[slot] = health
	t.dirty.Mark(slot)
	return nil
}

// Len returns the number of rows ever allocated (including despawned ones
// still counted toward capacity use).
func (t *MovingTable) Len() int { return t.len }

// Each calls fn once for every currently alive row, in slot order. It is the
// traversal physics and snapshot emission use to touch each live entity's
// columns sequentially.
func (t *MovingTable) Each(fn func(id EntityId, row MovingRow)) {
	for slot := 0; slot < t.len; slot++ {
		if !t.alive[slot] {
			continue
		}
		id := newEntityId(Moving, uint32(slot), t.generation[slot])
		fn(id, MovingRow{
			PosX: t.posX[slot], PosY: t.posY[slot], PosZ: t.posZ[slot],
			VelX: t.velX[slot], VelY: t.velY[slot], VelZ: t.velZ[slot],
			Health: t.health[slot], Type: t.typ[slot],
		})
	}
}

// copyRow copies row slot from src into t, used by the dirty-copy pass. A
// slot the destination has never seen before (spawned on the source table
// since the two tables were last synced) falls outside the destination's
// len, so copyRow grows it to cover the slot; otherwise the row would be
// unreachable via validate/Each on this buffer despite holding correct
// data. It also reconciles the destination's free list against the
// copied alive flag: a slot that just went dead is pushed onto the
// destination's free list (so the destination can reuse it once it
// becomes the write buffer), and a slot that was on the destination's
// free list but is now alive on the source (reused there first) is
// pulled back off it, since otherwise the destination would hand the
// same slot out a second time.
func (t *MovingTable) copyRow(src *MovingTable, slot uint32) {
	if int(slot) >= t.len {
		t.len = int(slot) + 1
	}
	wasAlive := t.alive[slot]
	t.posX[slot], t.posY[slot], t.posZ[slot] = src.posX[slot], src.posY[slot], src.posZ[slot]
	t.velX[slot], t.velY[slot], t.velZ[slot] = src.velX[slot], src.velY[slot], src.velZ[slot]
	t.health[slot] = src.health[slot]
	t.typ[slot] = src.typ[slot]
	t.alive[slot] = src.alive[slot]
	t.generation[slot] = src.generation[slot]
	switch {
	case wasAlive && !t.alive[slot]:
		t.free = append(t.free, slot)
	case !wasAlive && t.alive[slot]:
		t.removeFree(slot)
	}
}

// removeFree drops slot from the free list if present. Used when a dirty
// copy discovers a slot the destination believed free has since been
// reused on the source.
func (t *MovingTable) removeFree(slot uint32) {
	for i, s := range t.free {
		if s == slot {
			t.free[i] = t.free[len(t.free)-1]
			t.free = t.free[:len(t.free)-1]
			return
		}
	}
}

// equal reports whether t and o hold bitwise-identical rows for every
// allocated slot; used by the store's consistency self-check.
func (t *MovingTable) equal(o *MovingTable) bool {
	if t.len != o.len {
		return false
	}
	for i := 0; i < t.len; i++ {
		if t.posX[i] != o.posX[i] || t.posY[i] != o.posY[i] || t.posZ[i] != o.posZ[i] ||
			t.velX[i] != o.velX[i] || t.velY[i] != o.velY[i] || t.velZ[i] != o.velZ[i] ||
			t.health[i] != o.health[i] || t.typ[i] != o.typ[i] || t.alive[i] != o.alive[i] ||
			t.generation[i] != o.generation[i] {
			return false
		}
	}
	return true
}

// checksum folds every allocated row into a single fnv1a hash, giving the
// store's consistency self-check an O(N) pre-check cheaper than a
// field-by-field equal: two tables with different checksums are certainly
// unequal, letting VerifyBuffers skip the full comparison on the common
// case where a bug has actually left the buffers diverged.
func (t *MovingTable) checksum() uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddUint64(h, uint64(t.len))
	for i := 0; i < t.len; i++ {
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posX[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posY[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posZ[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.velX[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.velY[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.velZ[i])))
		h = fnv1a.AddUint64(h, uint64(t.health[i]))
		h = fnv1a.AddUint64(h, uint64(t.typ[i]))
		if t.alive[i] {
			h = fnv1a.AddUint64(h, 1)
		}
		h = fnv1a.AddUint64(h, uint64(t.generation[i]))
	}
	return h
}

// StaticTable is the columnar store for position-only entities.
type StaticTable struct {
	posX, posY, posZ []float32
	typ              []TypeTag
	generation       []uint32
	alive            []bool

	free  []uint32
	dirty *dirtyBitmap
	len   int
}

func newStaticTable(capacity int) *StaticTable {
	return &StaticTable{
		posX: make([]float32, capacity), posY: make([]float32, capacity), posZ: make([]float32, capacity),
		typ:        make([]TypeTag, capacity),
		generation: make([]uint32, capacity),
		alive:      make([]bool, capacity),
		dirty:      newDirtyBitmap(capacity),
	}
}

// Capacity returns the pre-allocated row count.
func (t *StaticTable) Capacity() int { return len(t.posX) }

// Spawn allocates a row and returns the resulting id.
func (t *StaticTable) Spawn(row StaticRow) (EntityId, uint32) {
	var slot uint32
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		slot = uint32(t.len)
		t.len++
	}
	t.posX[slot], t.posY[slot], t.posZ[slot] = row.PosX, row.PosY, row.PosZ
	t.typ[slot] = row.Type
	t.alive[slot] = true
	t.dirty.Mark(slot)
	return newEntityId(Static, slot, t.generation[slot]), slot
}

// Despawn frees slot and bumps its generation.
func (t *StaticTable) Despawn(slot uint32) {
	if !t.alive[slot] {
		return
	}
	t.alive[slot] = false
	t.generation[slot]++
	t.free = append(t.free, slot)
	t.dirty.Mark(slot)
}

func (t *StaticTable) validate(id EntityId) (uint32, bool) {
	slot := id.slot()
	if int(slot) >= t.len || !t.alive[slot] || t.generation[slot] != id.generation() {
		return 0, false
	}
	return slot, true
}

// Get reads the row for id.
func (t *StaticTable) Get(id EntityId) (StaticRow, error) {
	slot, ok := t.validate(id)
	if !ok {
		return StaticRow{}, errs.New("entitystore.StaticTable.Get", errs.NotFound)
	}
	return StaticRow{PosX: t.posX[slot], PosY: t.posY[slot], PosZ: t.posZ[slot], Type: t.typ[slot]}, nil
}

// SetPosition writes a new position for id and marks its row dirty.
func (t *StaticTable) SetPosition(id EntityId, x, y, z float32) error {
	slot, ok := t.validate(id)
	if !ok {
		return errs.New("entitystore.StaticTable.SetPosition", errs.NotFound)
	}
	t.posX[slot], t.posY[slot], t.posZ[slot] = x, y, z
	t.dirty.Mark(slot)
	return nil
}

// Len returns the number of rows ever allocated.
func (t *StaticTable) Len() int { return t.len }

// Each calls fn once for every currently alive row, in slot order.
func (t *StaticTable) Each(fn func(id EntityId, row StaticRow)) {
	for slot := 0; slot < t.len; slot++ {
		if !t.alive[slot] {
			continue
		}
		id := newEntityId(Static, uint32(slot), t.generation[slot])
		fn(id, StaticRow{PosX: t.posX[slot], PosY: t.posY[slot], PosZ: t.posZ[slot], Type: t.typ[slot]})
	}
}

// copyRow is the StaticTable analogue of MovingTable.copyRow; see its
// comment for why len growth and free-list reconciliation are required.
func (t *StaticTable) copyRow(src *StaticTable, slot uint32) {
	if int(slot) >= t.len {
		t.len = int(slot) + 1
	}
	wasAlive := t.alive[slot]
	t.posX[slot], t.posY[slot], t.posZ[slot] = src.posX[slot], src.posY[slot], src.posZ[slot]
	t.typ[slot] = src.typ[slot]
	t.alive[slot] = src.alive[slot]
	t.generation[slot] = src.generation[slot]
	switch {
	case wasAlive && !t.alive[slot]:
		t.free = append(t.free, slot)
	case !wasAlive && t.alive[slot]:
		t.removeFree(slot)
	}
}

// removeFree is the StaticTable analogue of MovingTable.removeFree.
func (t *StaticTable) removeFree(slot uint32) {
	for i, s := range t.free {
		if s == slot {
			t.free[i] = t.free[len(t.free)-1]
			t.free = t.free[:len(t.free)-1]
			return
		}
	}
}

func (t *StaticTable) equal(o *StaticTable) bool {
	if t.len != o.len {
		return false
	}
	for i := 0; i < t.len; i++ {
		if t.posX[i] != o.posX[i] || t.posY[i] != o.posY[i] || t.posZ[i] != o.posZ[i] ||
			t.typ[i] != o.typ[i] || t.alive[i] != o.alive[i] || t.generation[i] != o.generation[i] {
			return false
		}
	}
	return true
}

// checksum is the StaticTable analogue of MovingTable.checksum.
func (t *StaticTable) checksum() uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddUint64(h, uint64(t.len))
	for i := 0; i < t.len; i++ {
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posX[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posY[i])))
		h = fnv1a.AddUint64(h, uint64(math.Float32bits(t.posZ[i])))
		h = fnv1a.AddUint64(h, uint64(t.typ[i]))
		if t.alive[i] {
			h = fnv1a.AddUint64(h, 1)
		}
		h = fnv1a.AddUint64(h, uint64(t.generation[i]))
	}
	return h
}
