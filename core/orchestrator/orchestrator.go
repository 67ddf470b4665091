// Package orchestrator drives the fixed-step server tick pipeline:
// inputs, physics, action resolution, economy, buffer swap, broadcast.
package orchestrator

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dragonkeep/server/core/entitystore"
	"github.com/dragonkeep/server/geom"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// eyeHeight approximates a humanoid entity's eye offset above its feet
// position, used to anchor aim raycasts at a plausible camera height rather
// than ground level.
const eyeHeight = 1.62

// yawPitchScale is the fixed-point scale Input.Yaw/Pitch encode degrees at
// (hundredths of a degree), chosen so the wire type stays a compact int16
// while keeping sub-degree precision.
const yawPitchScale = 100.0

const (
	tpsSampleSize       = 60
	tpsWarningThreshold = 59.0
)

// Reactor is read by the orchestrator between phases without blocking; it
// is satisfied by *reactor.Reactor via its State() accessor.
type Reactor interface {
	State() DragonState
}

// WorldStreamer advances chunk loading/unloading once per tick and answers
// block queries for aim raycasts; it is satisfied by *world.Streamer.
type WorldStreamer interface {
	Tick() error
	BlockAtWorld(x, y, z int) (uint16, error)
}

// Config configures an Orchestrator.
type Config struct {
	// Log receives tick-budget warnings and phase errors. Defaults to
	// slog.Default() if nil.
	Log *slog.Logger
	// Rate is the fixed tick rate in Hz. Must be > 0.
	Rate int
	// Capacities sizes the underlying entity store.
	Capacities entitystore.Capacities
	// TimeoutTicks is how many ticks may elapse without an input before a
	// client's last known input is discarded in favour of a no-op.
	TimeoutTicks int64
	// Gravity and WorldMinY/WorldMaxY parameterize the physics sub-step.
	Gravity            float64
	WorldMinY, WorldMaxY float32
	// Economy is invoked during action resolution and the periodic economy
	// tick. Defaults to NopEconomy if nil.
	Economy Economy
	// Inputs supplies drained datagrams each tick. Defaults to a queue that
	// never yields anything if nil.
	Inputs InputQueue
	// Snapshots receives the per-tick outbound payloads. Defaults to a sink
	// that discards everything if nil.
	Snapshots SnapshotSink
	// Reactor supplies the dragon state embedded in each Snapshot.
	Reactor Reactor
	// EconomyTickInterval is how many ticks elapse between economy ticks
	// (phase 5). Zero disables periodic economy ticks.
	EconomyTickInterval int64
	// World advances chunk streaming once per tick, between action
	// resolution/economy and the buffer swap. Nil disables streaming and
	// action resolution of ActionBreakBlock (there is nothing to raycast
	// against).
	World WorldStreamer
	// MoveSpeed converts a unit move-vector component into a velocity
	// (blocks/s). Must match core/prediction.Config.MoveSpeed bit-for-bit
	// or client prediction will systematically diverge.
	MoveSpeed float64
	// JumpVelocity is the vertical velocity impulse applied when FlagJump
	// is held and the controlled entity is grounded.
	JumpVelocity float64
	// AttackRange is the maximum distance, in blocks, an ActionAttack may
	// reach.
	AttackRange float64
	// AttackConeCosine is the cosine of the half-angle of the attack's aim
	// cone: a candidate target must fall within this cone of the
	// attacker's facing direction to be eligible.
	AttackConeCosine float64
	// BreakRange is the maximum distance, in blocks, an ActionBreakBlock
	// raycast may reach.
	BreakRange float64
}

type nopInputs struct{}

func (nopInputs) Drain() []Datagram { return nil }

type nopSink struct{}

func (nopSink) SendSnapshot(uuid.UUID, Snapshot) {}
func (nopSink) SendDelta(uuid.UUID, Delta)       {}

func (c *Config) applyDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Rate <= 0 {
		c.Rate = 60
	}
	if c.TimeoutTicks <= 0 {
		c.TimeoutTicks = int64(c.Rate) * 10
	}
	if c.Economy == nil {
		c.Economy = NopEconomy{}
	}
	if c.Inputs == nil {
		c.Inputs = nopInputs{}
	}
	if c.Snapshots == nil {
		c.Snapshots = nopSink{}
	}
	if c.WorldMaxY == 0 && c.WorldMinY == 0 {
		c.WorldMinY, c.WorldMaxY = 0, 256
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

// PhaseTimings records how long each phase of the most recent tick took.
type PhaseTimings struct {
	Inputs, Physics, Actions, Economy, Swap, Snapshot time.Duration
	Total                                              time.Duration
	OverBudget                                          bool
}

// Orchestrator drives the CORE tick pipeline. It is the sole writer of its
// entity store double buffer.
type Orchestrator struct {
	conf   Config
	interval time.Duration
	budget time.Duration

	db      *entitystore.DoubleBuffer
	clients *clientTable

	tick atomic.Int64
	tps  atomic.Uint64

	lastTimings atomic.Pointer[PhaseTimings]

	closing  chan struct{}
	running  sync.WaitGroup
	stopOnce sync.Once
}

// New creates an Orchestrator from conf, applying defaults for any zero
// fields.
func New(conf Config) *Orchestrator {
	conf.applyDefaults()
	return &Orchestrator{
		conf:     conf,
		interval: time.Second / time.Duration(conf.Rate),
		budget:   time.Second / time.Duration(conf.Rate),
		db:       entitystore.New(conf.Capacities),
		clients:  newClientTable(),
		closing:  make(chan struct{}),
	}
}

// DoubleBuffer exposes the underlying entity store for readers (rendering,
// snapshot serializers external to the orchestrator's own pipeline).
func (o *Orchestrator) DoubleBuffer() *entitystore.DoubleBuffer { return o.db }

// CurrentTick returns the tick counter as of the last completed tick.
func (o *Orchestrator) CurrentTick() int64 { return o.tick.Load() }

// TPS returns the current average ticks per second, sampled over the last
// tpsSampleSize ticks.
func (o *Orchestrator) TPS() float64 { return math.Float64frombits(o.tps.Load()) }

// LastTimings returns the phase timing breakdown of the most recently
// completed tick, or nil if no tick has completed yet.
func (o *Orchestrator) LastTimings() *PhaseTimings { return o.lastTimings.Load() }

// Connect registers a new client controlling the given entity.
func (o *Orchestrator) Connect(client uuid.UUID, entity entitystore.EntityId) {
	o.clients.connect(client, entity)
}

// Disconnect removes a client's bookkeeping.
func (o *Orchestrator) Disconnect(client uuid.UUID) {
	o.clients.disconnect(client)
}

// Run starts the fixed-step tick loop. It blocks until ctx is cancelled or
// Stop is called, finishing the in-flight tick before returning.
func (o *Orchestrator) Run(ctx context.Context) {
	o.running.Add(1)
	defer o.running.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	var (
		durationSum time.Duration
		samples     int
		warned      bool
		last        = time.Now()
	)
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if elapsed > 0 {
				durationSum += elapsed
				samples++
				if samples >= tpsSampleSize {
					avg := durationSum / time.Duration(samples)
					if avg > 0 {
						tps := 1.0 / avg.Seconds()
						o.tps.Store(math.Float64bits(tps))
						if tps < tpsWarningThreshold {
							if !warned {
								o.conf.Log.Warn("tick rate dropped below threshold", "tps", tps)
								warned = true
							}
						} else {
							warned = false
						}
					}
					durationSum, samples = 0, 0
				}
			}
			o.Tick()
		case <-ctx.Done():
			return
		case <-o.closing:
			return
		}
	}
}

// Stop signals the tick loop to exit after finishing the current tick.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.closing) })
	o.running.Wait()
}

// Tick performs exactly one iteration of the fixed pipeline, in strict
// order: drain inputs, apply inputs, physics, action resolution, economy,
// buffer swap, snapshot emission, record timings.
func (o *Orchestrator) Tick() PhaseTimings {
	start := time.Now()
	tick := o.tick.Load()

	w, err := o.db.AcquireWriter()
	if err != nil {
		// A writer handle should always be obtainable here: the
		// orchestrator is the sole writer and releases it before every
		// return. Failure indicates a programmer error elsewhere.
		panic("orchestrator: could not acquire writer for tick " + err.Error())
	}

	var timings PhaseTimings

	t0 := time.Now()
	datagrams := o.conf.Inputs.Drain()
	for _, d := range datagrams {
		switch d.Kind {
		case DatagramConnect, DatagramDisconnect:
			// Connection lifecycle is handled via Connect/Disconnect calls
			// from the transport layer directly; datagrams of these kinds
			// only update liveness bookkeeping here.
		default:
			o.clients.apply(d, tick)
		}
	}
	timings.Inputs = time.Since(t0)

	t0 = time.Now()
	for _, id := range o.clients.ids() {
		if o.clients.timedOut(id, tick, o.conf.TimeoutTicks) {
			if st := o.clients.clients[id]; st != nil {
				st.hasInput = false
			}
		}
	}
	timings.Inputs += time.Since(t0)

	t0 = time.Now()
	o.applyMoveInputs(w, tick)
	timings.Inputs += time.Since(t0)

	t0 = time.Now()
	phys := Physics{Gravity: o.conf.Gravity, MinY: o.conf.WorldMinY, MaxY: o.conf.WorldMaxY}
	phys.Step(w.Store().Moving, o.interval.Seconds())
	timings.Physics = time.Since(t0)

	t0 = time.Now()
	o.resolveActions(w, datagrams)
	timings.Actions = time.Since(t0)

	t0 = time.Now()
	if o.conf.EconomyTickInterval > 0 && tick%o.conf.EconomyTickInterval == 0 {
		o.conf.Economy.Tick(w, tick)
	}
	timings.Economy = time.Since(t0)

	w.Release()

	if o.conf.World != nil {
		if err := o.conf.World.Tick(); err != nil {
			o.conf.Log.Error("world streaming tick failed", "tick", tick, "err", err)
		}
	}

	t0 = time.Now()
	o.db.Swap()
	timings.Swap = time.Since(t0)

	t0 = time.Now()
	o.emitSnapshots()
	timings.Snapshot = time.Since(t0)

	timings.Total = time.Since(start)
	timings.OverBudget = timings.Total > o.budget
	if timings.OverBudget {
		o.conf.Log.Warn("tick exceeded budget", "tick", tick, "total", timings.Total, "budget", o.budget)
	}
	o.lastTimings.Store(&timings)
	o.tick.Add(1)
	return timings
}

// applyMoveInputs sets each connected client's controlled entity's
// horizontal velocity from its most recently applied input's move vector,
// the same mapping core/prediction.Predictor.step applies client-side, so
// the two integrators diverge only by floating-point rounding. A held
// FlagJump applies a vertical impulse when the entity is grounded.
func (o *Orchestrator) applyMoveInputs(w *entitystore.WriterHandle, tick int64) {
	for _, id := range o.clients.ids() {
		st := o.clients.clients[id]
		if st == nil || !st.hasInput {
			continue
		}
		row, err := w.Store().Moving.Get(st.entity)
		if err != nil {
			continue
		}
		vx := float32(st.lastInput.Move[0]) * float32(o.conf.MoveSpeed)
		vz := float32(st.lastInput.Move[2]) * float32(o.conf.MoveSpeed)
		vy := row.VelY
		grounded := row.PosY <= o.conf.WorldMinY && row.VelY <= 0
		if grounded && st.lastInput.Flags.Has(FlagJump) {
			vy = float32(o.conf.JumpVelocity)
		}
		_ = w.Store().Moving.SetVelocity(st.entity, vx, vy, vz)
	}
}

// resolveActions performs phase 4 (action resolution) for each pending
// action, in the order the datagrams arrived, routing attacks and block
// breaks through the Economy collaborator before any entity store mutation
// happens.
func (o *Orchestrator) resolveActions(w *entitystore.WriterHandle, datagrams []Datagram) {
	for _, d := range datagrams {
		if d.Kind != DatagramInput {
			continue
		}
		in := d.Input
		st := o.clients.clients[in.Client]
		if st == nil {
			continue
		}
		switch in.Action {
		case ActionAttack:
			o.resolveAttack(w, in, st)
		case ActionBreakBlock:
			o.resolveBreakBlock(w, in, st)
		case ActionPlaceBlock, ActionUseItem:
			// Neither action can be resolved from the CORE's Input: the
			// wire contract (§6) carries an action tag and an aim
			// direction, but no item-to-place or item-in-hand field. A
			// transport that extends Input with such a payload routes it
			// through Economy.ResolvePlaceBlock directly; the CORE contract
			// only guarantees that, were such a payload present, it would
			// be resolved in this phase, before the buffer swap.
		case ActionMove:
			// Applied in applyMoveInputs, before the physics sub-step.
		}
	}
}

// resolveAttack finds the nearest live entity within AttackRange and
// AttackConeCosine of the attacker's aim direction and routes the hit
// through Economy, applying the returned damage to the target's health.
func (o *Orchestrator) resolveAttack(w *entitystore.WriterHandle, in Input, st *clientState) {
	attacker, err := w.Store().Moving.Get(st.entity)
	if err != nil {
		return
	}
	origin := mgl64.Vec3{float64(attacker.PosX), float64(attacker.PosY) + eyeHeight, float64(attacker.PosZ)}
	dir := aimDirection(in.Yaw, in.Pitch)
	target, ok := nearestInCone(w.Store().Moving, st.entity, origin, dir, o.conf.AttackRange, o.conf.AttackConeCosine)
	if !ok {
		return
	}
	result, err := o.conf.Economy.ResolveAttack(w, in.Client, target)
	if err != nil {
		o.conf.Log.Warn("attack resolution failed", "client", in.Client, "err", err)
		return
	}
	if !result.Hit {
		return
	}
	targetRow, err := w.Store().Moving.Get(target)
	if err != nil {
		return
	}
	newHealth := uint32(0)
	if targetRow.Health > result.Damage {
		newHealth = targetRow.Health - result.Damage
	}
	_ = w.Store().Moving.SetHealth(target, newHealth)
}

// resolveBreakBlock raycasts from the client's eye position along its aim
// direction to find the first non-air block within BreakRange, then routes
// the break through Economy. The world mutation itself (and any loot grant)
// is entirely Economy's responsibility; the orchestrator only supplies the
// target position.
func (o *Orchestrator) resolveBreakBlock(w *entitystore.WriterHandle, in Input, st *clientState) {
	if o.conf.World == nil {
		return
	}
	row, err := w.Store().Moving.Get(st.entity)
	if err != nil {
		return
	}
	origin := mgl64.Vec3{float64(row.PosX), float64(row.PosY) + eyeHeight, float64(row.PosZ)}
	dir := aimDirection(in.Yaw, in.Pitch)
	pos, ok := o.raycastBlock(origin, dir, o.conf.BreakRange)
	if !ok {
		return
	}
	if _, err := o.conf.Economy.ResolveBreakBlock(w, in.Client, pos, 0); err != nil {
		o.conf.Log.Warn("break block resolution failed", "client", in.Client, "err", err)
	}
}

// raycastBlock marches from origin along dir in fixed steps up to maxRange,
// returning the block-space position of the first non-air block
// encountered.
func (o *Orchestrator) raycastBlock(origin, dir mgl64.Vec3, maxRange float64) (geom.Pos, bool) {
	const step = 0.1
	for t := 0.0; t <= maxRange; t += step {
		pos := geom.PosFromVec3(origin.Add(dir.Mul(t)))
		id, err := o.conf.World.BlockAtWorld(pos.X(), pos.Y(), pos.Z())
		if err != nil || id != 0 {
			return pos, err == nil
		}
	}
	return geom.Pos{}, false
}

// aimDirection converts a wire yaw/pitch pair (degrees * yawPitchScale)
// into a unit facing vector, using the same yaw=0-faces-+Z, pitch=positive-
// looks-down convention as the rest of the CORE's symbolic axis treatment
// (see package geom).
func aimDirection(yaw, pitch int16) mgl64.Vec3 {
	yawRad := float64(yaw) / yawPitchScale * math.Pi / 180
	pitchRad := float64(pitch) / yawPitchScale * math.Pi / 180
	cosPitch := math.Cos(pitchRad)
	return mgl64.Vec3{
		-math.Sin(yawRad) * cosPitch,
		-math.Sin(pitchRad),
		math.Cos(yawRad) * cosPitch,
	}
}

// nearestInCone scans moving for the closest entity other than self that
// lies within maxRange and within the cone of half-angle arccos(minCos)
// around dir, both measured from origin.
func nearestInCone(moving *entitystore.MovingTable, self entitystore.EntityId, origin, dir mgl64.Vec3, maxRange, minCos float64) (entitystore.EntityId, bool) {
	var best entitystore.EntityId
	bestDist := math.MaxFloat64
	found := false
	moving.Each(func(id entitystore.EntityId, row entitystore.MovingRow) {
		if id == self || row.Health == 0 {
			return
		}
		to := mgl64.Vec3{float64(row.PosX), float64(row.PosY), float64(row.PosZ)}.Sub(origin)
		dist := to.Len()
		if dist == 0 || dist > maxRange || dist >= bestDist {
			return
		}
		if to.Normalize().Dot(dir) < minCos {
			return
		}
		best, bestDist, found = id, dist, true
	})
	return best, found
}

// emitSnapshots builds the tick's entity list from the read buffer and hands
// it to the SnapshotSink for every connected client, split into Snapshots
// of at most MSnap entities that all carry the same tick. Readers observing this phase's
// output see a coherent post-tick state, never an intermediate one, because
// the buffer swap (phase 6) has already completed.
func (o *Orchestrator) emitSnapshots() {
	r := o.db.AcquireReader()
	defer r.Release()

	tick := o.tick.Load()
	dragon := DragonState{}
	if o.conf.Reactor != nil {
		dragon = o.conf.Reactor.State()
	}

	entities := make([]EntityState, 0, MSnap)
	r.Store().Moving.Each(func(id entitystore.EntityId, row entitystore.MovingRow) {
		entities = append(entities, EntityState{
			ID: id, X: row.PosX, Y: row.PosY, Z: row.PosZ,
			VX: row.VelX, VY: row.VelY, VZ: row.VelZ,
			Health: row.Health,
		})
	})

	for _, client := range o.clients.ids() {
		for start := 0; start == 0 || start < len(entities); start += MSnap {
			end := min(start+MSnap, len(entities))
			o.conf.Snapshots.SendSnapshot(client, Snapshot{Tick: tick, Dragon: dragon, Entities: entities[start:end]})
		}
	}
}
