package loot

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/dragonkeep/server/errs"
)

// Rarity orders drop tiers from most to least common. The fast path is used
// for blocks whose highest-rarity drop is below the configured secure
// threshold.
type Rarity uint8

const (
	Common Rarity = iota
	Uncommon
	Rare
	Epic
	Legendary
	Mythic
)

// Entry is one possible drop from a LootTable.
type Entry struct {
	ItemID     uint32
	Weight     uint32
	MinQty     uint32
	MaxQty     uint32
	Rarity     Rarity
	MinLevel   uint8
	MinToolTier uint8
}

// Table is a block's loot table: its own rarity plus a weighted list of
// possible drops. TotalWeight always equals the sum of entry weights; it is
// precomputed by Register so rolling stays O(1).
type Table struct {
	BlockID     uint32
	BlockRarity Rarity
	Entries     []Entry
	TotalWeight uint32
	checksum    uint64
}

func newTable(blockID uint32, blockRarity Rarity, entries []Entry) *Table {
	var total uint32
	for _, e := range entries {
		total += e.Weight
	}
	t := &Table{BlockID: blockID, BlockRarity: blockRarity, Entries: entries, TotalWeight: total}
	t.checksum = t.computeChecksum()
	return t
}

// computeChecksum folds every entry's weight and item id through xxhash,
// giving a cheap way to detect a loot table mutated in place (e.g. by a
// plugin reaching into Entries) without re-summing weights on every roll.
// Verify re-derives and compares this value; a mismatch means BlockID,
// TotalWeight or some entry's item id or weight changed after
// construction.
func (t *Table) computeChecksum() uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], t.BlockID)
	binary.LittleEndian.PutUint32(buf[4:8], t.TotalWeight)
	h.Write(buf[:])
	for _, e := range t.Entries {
		binary.LittleEndian.PutUint32(buf[0:4], e.ItemID)
		binary.LittleEndian.PutUint32(buf[4:8], e.Weight)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Verify reports whether BlockID, TotalWeight and every entry's item id and
// weight still hash to the checksum taken at construction, catching
// in-place mutation of Entries after registration.
func (t *Table) Verify() bool {
	return t.computeChecksum() == t.checksum
}

// HighestRarity returns the highest rarity among the table's entries and its
// own block rarity, used to decide whether the secure path is forced.
func (t *Table) HighestRarity() Rarity {
	r := t.BlockRarity
	for _, e := range t.Entries {
		if e.Rarity > r {
			r = e.Rarity
		}
	}
	return r
}

// Registry holds loot tables keyed by block id.
type Registry struct {
	tables map[uint32]*Table
}

// NewRegistry creates an empty loot table registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[uint32]*Table)}
}

// Register adds or replaces the loot table for blockID.
func (r *Registry) Register(blockID uint32, blockRarity Rarity, entries []Entry) *Table {
	t := newTable(blockID, blockRarity, entries)
	r.tables[blockID] = t
	return t
}

// Lookup returns the loot table for blockID.
func (r *Registry) Lookup(blockID uint32) (*Table, error) {
	t, ok := r.tables[blockID]
	if !ok {
		return nil, errs.New("loot.Registry.Lookup", errs.NotFound)
	}
	return t, nil
}

// selectEntry picks an entry from t using roll, a value in [0, t.TotalWeight).
func (t *Table) selectEntry(roll uint32) (Entry, bool) {
	if t.TotalWeight == 0 {
		return Entry{}, false
	}
	roll %= t.TotalWeight
	var acc uint32
	for _, e := range t.Entries {
		acc += e.Weight
		if roll < acc {
			return e, true
		}
	}
	return Entry{}, false
}
