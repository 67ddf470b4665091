package loot

import (
	"strings"
	"testing"
)

func newTestEngine(t *testing.T, secureThreshold Rarity, baseRateBp uint32) *Engine {
	t.Helper()
	e, err := NewEngine(Config{
		SecureRarityThreshold: secureThreshold,
		BaseRateBp:            baseRateBp,
		Tables:                DefaultPrecomputed(),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func commonTable(reg *Registry) *Table {
	return reg.Register(1, Common, []Entry{
		{ItemID: 100, Weight: 60, MinQty: 1, MaxQty: 3, Rarity: Common},
		{ItemID: 200, Weight: 40, MinQty: 1, MaxQty: 1, Rarity: Rare},
	})
}

// TestFastPathDeterministic exercises §8: "for all (block, level, tool,
// weather, nonce) tuples in the fast loot path, two invocations yield
// identical outputs."
func TestFastPathDeterministic(t *testing.T) {
	reg := NewRegistry()
	commonTable(reg)
	// A threshold above Mythic (the highest defined rarity) keeps every
	// table on the fast path regardless of its entries.
	e := newTestEngine(t, Rarity(6), 5000)

	a, err := e.Roll(reg, 1, 50, 3, 12345, 67890)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	b, err := e.Roll(reg, 1, 50, 3, 12345, 67890)
	if err != nil {
		t.Fatalf("Roll: %v", err)
	}
	if a != b {
		t.Fatalf("fast path must be deterministic for identical inputs: %+v != %+v", a, b)
	}
}

// TestSecurePathNonceUniqueness exercises end-to-end scenario 3: 100 calls
// with identical public inputs against a loot table with a rare entry must
// disagree in at least 30 of 100 consecutive pairs, since each secure call
// consumes a unique action nonce.
func TestSecurePathNonceUniqueness(t *testing.T) {
	reg := NewRegistry()
	commonTable(reg)
	// Zero-value threshold (Common) forces every table onto the secure
	// path, matching the spec's "secure path always" default. A base rate
	// well above 10000bp keeps chanceBp above the maximum possible roll so
	// every call hits, leaving entry/quantity selection (not chance) as
	// the only source of variation between calls.
	e := newTestEngine(t, Common, 30000)

	const n = 100
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		r, err := e.Roll(reg, 1, 50, 3, 12345, 67890)
		if err != nil {
			t.Fatalf("Roll: %v", err)
		}
		results[i] = r
	}
	differing := 0
	for i := 1; i < n; i++ {
		if results[i] != results[i-1] {
			differing++
		}
	}
	if differing < 30 {
		t.Fatalf("expected at least 30 of 99 consecutive pairs to differ, got %d", differing)
	}
}

// TestPlayerLevelAndToolTierFeedDropChance exercises §4.E's fast-path
// formula directly: chanceBp must be derived from the player's own level
// and tool tier, not from the loot entry's MinLevel/MinToolTier. The
// entry's thresholds are set far from both tested player stats so a
// regression that reads bonuses off the entry instead of the caller's
// arguments produces the same chanceBp for both calls below.
func TestPlayerLevelAndToolTierFeedDropChance(t *testing.T) {
	reg := NewRegistry()
	table := reg.Register(1, Common, []Entry{
		{ItemID: 100, Weight: 1, MinQty: 1, MaxQty: 1, Rarity: Common, MinLevel: 200, MinToolTier: 200},
	})
	e := newTestEngine(t, Rarity(6), 5000)

	// A fixed hash whose roll (hash % 10000) sits strictly between the
	// chanceBp produced by a level-0/tier-0 player and a level-255/tier-255
	// player, so the two calls land on opposite sides of the hit threshold
	// only if the bonus genuinely tracks the player argument.
	const fixedHash = 7777

	low := e.rollWithHash(table, 0, 0, fixedHash)
	if low.Hit {
		t.Fatalf("expected a miss at level 0 / tier 0 (chanceBp 5000), got %+v", low)
	}
	high := e.rollWithHash(table, 255, 255, fixedHash)
	if !high.Hit {
		t.Fatalf("expected a hit at level 255 / tier 255 (chanceBp > 9999), got %+v", high)
	}
}

func TestRollUnknownBlockIsNotFound(t *testing.T) {
	reg := NewRegistry()
	e := newTestEngine(t, Common, 10000)
	if _, err := e.Roll(reg, 999, 1, 1, 1, 1); err == nil {
		t.Fatal("expected an error looking up an unregistered block")
	}
}

// TestSecretNeverExposesMaterial guards §4.E's "debug representation of
// the server secret must never expose the secret material."
func TestSecretNeverExposesMaterial(t *testing.T) {
	s, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	for _, repr := range []string{s.String(), s.GoString()} {
		if strings.Contains(repr, "0x") || len(repr) > 40 {
			t.Fatalf("secret representation looks like it may leak material: %q", repr)
		}
	}
}

// TestTableVerifyDetectsInPlaceMutation guards the LootTable invariant from
// §3: total_weight must equal the sum of entry weights.
func TestTableVerifyDetectsInPlaceMutation(t *testing.T) {
	reg := NewRegistry()
	table := commonTable(reg)
	if !table.Verify() {
		t.Fatal("freshly registered table must verify")
	}
	table.Entries[0].Weight += 1000
	if table.Verify() {
		t.Fatal("expected Verify to detect a weight mutated after registration")
	}
}
