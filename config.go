// Package dragonkeep wires the simulation subsystems (entity store, tick
// orchestrator, prediction support, WAL, loot engine, reactor, world
// streaming, crafting) into one running server.
package dragonkeep

import (
	"log/slog"
	"time"

	"github.com/dragonkeep/server/core/entitystore"
	"github.com/dragonkeep/server/core/loot"
	"github.com/dragonkeep/server/core/reactor"
	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/world"
)

// Config holds every tunable for the running server, with applyDefaults
// filling in zero-valued fields before use.
type Config struct {
	// Log receives structured logs from every subsystem. Defaults to
	// slog.Default() if nil.
	Log *slog.Logger
	// TickRate is the fixed orchestrator tick rate in Hz.
	TickRate int
	// Capacities sizes the entity store.
	Capacities entitystore.Capacities
	// Gravity and WorldMinY/WorldMaxY parameterize the shared integrator
	// used identically by the server's physics phase and the client
	// prediction package.
	Gravity              float64
	WorldMinY, WorldMaxY float32

	// WAL configures the batched write-ahead log.
	WAL wal.Config

	// Loot configures the tiered loot engine.
	Loot loot.Config

	// Reactor configures the external-event reactor.
	Reactor reactor.Config

	// World configures chunk streaming/persistence.
	World world.Config

	// EconomyTickInterval is how many ticks elapse between periodic
	// economy ticks (crafting upkeep, loot table refresh, etc.).
	EconomyTickInterval int64

	// AirBlockID is the global material id a broken block is replaced
	// with by the Economy collaborator.
	AirBlockID uint16
	// MoveSpeed, JumpVelocity, AttackRange, AttackConeCosine and
	// BreakRange parameterize the orchestrator's action-resolution phase;
	// see orchestrator.Config for their meaning. MoveSpeed must match the
	// value given to core/prediction.Config on the client.
	MoveSpeed        float64
	JumpVelocity     float64
	AttackRange      float64
	AttackConeCosine float64
	BreakRange       float64
}

// applyDefaults fills unset fields with the values the corpus treats as
// sane defaults: 60Hz ticking, standard overworld vertical bounds, and a
// gravity of 32 blocks/s^2 converted to the per-tick velocity delta the
// physics step subtracts.
func (c *Config) applyDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.Capacities.Moving <= 0 {
		c.Capacities.Moving = 4096
	}
	if c.Capacities.Static <= 0 {
		c.Capacities.Static = 65536
	}
	if c.WorldMinY == 0 && c.WorldMaxY == 0 {
		c.WorldMinY, c.WorldMaxY = 0, 256
	}
	if c.Gravity == 0 {
		c.Gravity = 0.08 * 20 * 20 / float64(c.TickRate) // 32 blocks/s^2 (0.08 blocks/tick^2 at a 20 ticks/s baseline) as a per-tick delta at TickRate.
	}
	if c.EconomyTickInterval <= 0 {
		c.EconomyTickInterval = int64(c.TickRate) // once per second by default.
	}
	if c.MoveSpeed <= 0 {
		c.MoveSpeed = 4.3
	}
	if c.JumpVelocity <= 0 {
		c.JumpVelocity = 8.4
	}
	if c.AttackRange <= 0 {
		c.AttackRange = 3.5
	}
	if c.AttackConeCosine <= 0 {
		c.AttackConeCosine = 0.85
	}
	if c.BreakRange <= 0 {
		c.BreakRange = 5.5
	}
}

// ShutdownSignal is a closed-channel signal that Server.Run fires once its
// context is cancelled, for any goroutine that selects on Done. The
// orchestrator, reactor and WAL writer do not observe it: each stops
// through its own Stop or Close call, which Server.Close makes.
type ShutdownSignal struct {
	done chan struct{}
}

// NewShutdownSignal creates an unfired ShutdownSignal.
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

// Done returns a channel closed once Fire is called, for goroutines to
// select on between units of work.
func (s *ShutdownSignal) Done() <-chan struct{} { return s.done }

// Fire closes the signal, idempotently.
func (s *ShutdownSignal) Fire() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// AntiCheatReport is a structured reporting surface in place of anti-cheat
// heuristics: a bounded channel of observations (e.g. a reconciliation
// that needed a hard snap, or an action resolved against stale state) for
// an operator or external system to consume, rather than the server
// silently flagging/acting on players.
type AntiCheatReport struct {
	Timestamp time.Time
	ClientID  string
	Kind      string
	Detail    string
}
