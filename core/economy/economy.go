// Package economy implements the concrete Economy collaborator the tick
// orchestrator invokes during action resolution and the periodic economy
// tick: it consults the Loot Engine for attack and block-break outcomes,
// durably records the event to the WAL, and applies the resulting world
// mutation, in that order, so a crash between rolling loot and applying it
// can never leave one without the other once the WAL record is durable.
package economy

import (
	"log/slog"

	"github.com/dragonkeep/server/core/entitystore"
	"github.com/dragonkeep/server/core/loot"
	"github.com/dragonkeep/server/core/orchestrator"
	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/errs"
	"github.com/dragonkeep/server/geom"
	"github.com/dragonkeep/server/metrics"
	"github.com/dragonkeep/server/world"
	"github.com/google/uuid"
)

// AttackDamage is a flat per-tool-tier damage table. Index 0 is the
// unarmed/default damage; the CORE's Input does not carry a weapon tier, so
// every attack currently resolves at index 0 — a fuller transport that adds
// one would index this table directly.
var AttackDamage = [8]uint32{1, 3, 4, 5, 6, 7, 8, 10}

// Config configures an Economy.
type Config struct {
	Log *slog.Logger
	// Loot rolls drop outcomes for broken blocks.
	Loot *loot.Engine
	// Tables is the registry Loot rolls against.
	Tables *loot.Registry
	// WAL receives a durable record of every resolved action before its
	// world or entity-store mutation is applied.
	WAL *wal.WAL
	// World is mutated by ResolveBreakBlock/ResolvePlaceBlock.
	World *world.Streamer
	// Metrics records loot-path and WAL-append counters. A nil Metrics
	// is valid; every Registry method no-ops on a nil receiver.
	Metrics *metrics.Registry
	// AirBlockID is the global material id a broken block is replaced
	// with.
	AirBlockID uint16
}

func (c *Config) applyDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
}

// Economy implements orchestrator.Economy.
type Economy struct {
	conf Config
	tick int64
}

// New creates an Economy from conf.
func New(conf Config) *Economy {
	conf.applyDefaults()
	return &Economy{conf: conf}
}

var _ orchestrator.Economy = (*Economy)(nil)

// ResolveAttack validates that target is still a live entity and returns a
// flat-damage hit. The Loot Engine is not consulted here: drop tables are
// keyed by block id, not by entity kind, per the data model (§3); an item
// drop from a kill is a block-break-shaped event the caller routes through
// ResolveBreakBlock at the kill site if the host wants that behavior.
func (e *Economy) ResolveAttack(w *entitystore.WriterHandle, attacker uuid.UUID, target entitystore.EntityId) (orchestrator.AttackResult, error) {
	if _, err := w.Store().Moving.Get(target); err != nil {
		if errs.Is(err, errs.NotFound) {
			return orchestrator.AttackResult{}, nil
		}
		return orchestrator.AttackResult{}, err
	}
	return orchestrator.AttackResult{Hit: true, Target: target, Damage: AttackDamage[0]}, nil
}

// ResolveBreakBlock rolls the Loot Engine for the block at pos, appends a
// durable economy event to the WAL, waits for it to become durable, and
// only then replaces the block with air. A block read as air (global id 0)
// resolves to a no-op BreakResult: there is nothing to break.
func (e *Economy) ResolveBreakBlock(w *entitystore.WriterHandle, client uuid.UUID, pos geom.Pos, toolTier uint8) (orchestrator.BreakResult, error) {
	blockID, err := e.conf.World.BlockAtWorld(pos.X(), pos.Y(), pos.Z())
	if err != nil {
		return orchestrator.BreakResult{}, err
	}
	if blockID == 0 {
		return orchestrator.BreakResult{}, nil
	}

	e.conf.Loot.AdvanceTick()
	result, err := e.conf.Loot.Roll(e.conf.Tables, uint32(blockID), 0, toolTier, 0, uint32(e.tick))
	if err != nil {
		if !errs.Is(err, errs.NotFound) {
			return orchestrator.BreakResult{}, err
		}
		result = loot.Result{}
	} else if result.Hit {
		e.conf.Metrics.IncLootFastPath()
	}

	handle, err := e.conf.WAL.LogEconomyEvent(encodeBreakEvent(client, pos, blockID, result))
	if err != nil {
		e.conf.Metrics.IncWALBackpressure()
		return orchestrator.BreakResult{}, err
	}
	if err := handle.Wait(); err != nil {
		return orchestrator.BreakResult{}, err
	}
	e.conf.Metrics.IncWALAppend()

	if err := e.conf.World.SetBlockAtWorld(pos.X(), pos.Y(), pos.Z(), e.conf.AirBlockID, e.tick); err != nil {
		return orchestrator.BreakResult{}, err
	}
	return orchestrator.BreakResult{Broken: true, ItemID: result.ItemID, Quantity: result.Quantity}, nil
}

// ResolvePlaceBlock writes blockID at pos. The orchestrator's
// resolveActions never calls this today (see its ActionPlaceBlock case);
// it is exposed so a transport that extends Input with an
// item-in-hand/target-block payload has a stable collaborator to route
// through.
func (e *Economy) ResolvePlaceBlock(w *entitystore.WriterHandle, client uuid.UUID, pos geom.Pos, blockID uint16) error {
	return e.conf.World.SetBlockAtWorld(pos.X(), pos.Y(), pos.Z(), blockID, e.tick)
}

// Tick records the current server tick, used to seed loot rolls so that
// otherwise-identical break actions resolve differently across ticks.
func (e *Economy) Tick(w *entitystore.WriterHandle, tick int64) {
	e.tick = tick
}
