package orchestrator

import (
	"github.com/dragonkeep/server/core/entitystore"
	"github.com/dragonkeep/server/geom"
	"github.com/google/uuid"
)

// AttackResult carries the per-action outcome encoded back to the client
// that issued the attack, so action outcomes are reported to the client
// rather than silently dropped.
type AttackResult struct {
	Hit    bool
	Target entitystore.EntityId
	Damage uint32
}

// BreakResult carries the outcome of a block-break action, including any
// item granted by the loot engine.
type BreakResult struct {
	Broken    bool
	ItemID    uint32
	Quantity  uint32
}

// Economy is the external collaborator invoked during action resolution
// for attacks and block breaks, and during the periodic
// economy tick. Its concrete implementation consults the
// Loot Engine and appends to the WAL before the orchestrator mutates the
// entity store with the result.
type Economy interface {
	ResolveAttack(w *entitystore.WriterHandle, attacker uuid.UUID, target entitystore.EntityId) (AttackResult, error)
	ResolveBreakBlock(w *entitystore.WriterHandle, client uuid.UUID, pos geom.Pos, toolTier uint8) (BreakResult, error)
	ResolvePlaceBlock(w *entitystore.WriterHandle, client uuid.UUID, pos geom.Pos, blockID uint16) error
	Tick(w *entitystore.WriterHandle, tick int64)
}

// NopEconomy implements Economy as a no-op, useful for tests and for
// orchestrator configurations that only exercise the physics/snapshot
// pipeline.
type NopEconomy struct{}

func (NopEconomy) ResolveAttack(*entitystore.WriterHandle, uuid.UUID, entitystore.EntityId) (AttackResult, error) {
	return AttackResult{}, nil
}

func (NopEconomy) ResolveBreakBlock(*entitystore.WriterHandle, uuid.UUID, geom.Pos, uint8) (BreakResult, error) {
	return BreakResult{}, nil
}

func (NopEconomy) ResolvePlaceBlock(*entitystore.WriterHandle, uuid.UUID, geom.Pos, uint16) error {
	return nil
}

func (NopEconomy) Tick(*entitystore.WriterHandle, int64) {}
