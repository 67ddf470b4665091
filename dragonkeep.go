package dragonkeep

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dragonkeep/server/core/economy"
	"github.com/dragonkeep/server/core/loot"
	"github.com/dragonkeep/server/core/orchestrator"
	"github.com/dragonkeep/server/core/reactor"
	"github.com/dragonkeep/server/core/wal"
	"github.com/dragonkeep/server/item/recipe"
	"github.com/dragonkeep/server/metrics"
	"github.com/dragonkeep/server/world"
)

// reactorAdapter satisfies orchestrator.Reactor by translating the
// reactor's published SharedState into the snapshot-embeddable
// orchestrator.DragonState, since the two packages intentionally don't
// depend on each other's types directly.
type reactorAdapter struct {
	shared *reactor.SharedState
}

func (a reactorAdapter) State() orchestrator.DragonState {
	return orchestrator.DragonState{
		State:      uint8(a.shared.State()),
		Aggression: a.shared.Aggression(),
	}
}

// Server is the assembled runtime: the tick orchestrator, WAL, loot
// engine, reactor, world streamer, and crafting graph, plus the
// ShutdownSignal that Run fires on context cancellation. Grounded on the teacher's server.Server, which holds
// exactly this kind of flat set of long-lived subsystem handles.
type Server struct {
	conf Config

	Orchestrator *orchestrator.Orchestrator
	WAL          *wal.WAL
	Loot         *loot.Engine
	LootTables   *loot.Registry
	Economy      *economy.Economy
	Reactor      *reactor.Reactor
	World        *world.Streamer
	Recipes      *recipe.Graph
	Metrics      *metrics.Registry

	shutdown *ShutdownSignal
	wg       sync.WaitGroup
}

// New assembles a Server from conf, applying defaults and opening the
// WAL file, exactly the way the teacher's server.New opens its world
// provider and resource packs before returning.
func New(conf Config) (*Server, error) {
	conf.applyDefaults()

	w, err := wal.Open(conf.WAL)
	if err != nil {
		return nil, err
	}

	if conf.Loot.BaseRateBp == 0 {
		conf.Loot.Tables = loot.DefaultPrecomputed()
	}
	lootEngine, err := loot.NewEngine(conf.Loot)
	if err != nil {
		w.Close()
		return nil, err
	}

	reg := metrics.New()

	conf.World.WAL = w
	conf.World.Metrics = reg
	streamer := world.NewStreamer(conf.World)

	lootTables := loot.NewRegistry()

	econ := economy.New(economy.Config{
		Log:        conf.Log,
		Loot:       lootEngine,
		Tables:     lootTables,
		WAL:        w,
		World:      streamer,
		Metrics:    reg,
		AirBlockID: conf.AirBlockID,
	})

	reactorInst := reactor.New(conf.Reactor)

	orchConf := orchestrator.Config{
		Log:                 conf.Log,
		Rate:                conf.TickRate,
		Capacities:          conf.Capacities,
		Gravity:             conf.Gravity,
		WorldMinY:           conf.WorldMinY,
		WorldMaxY:           conf.WorldMaxY,
		Reactor:             reactorAdapter{shared: reactorInst.State()},
		EconomyTickInterval: conf.EconomyTickInterval,
		World:               streamer,
		Economy:             econ,
		MoveSpeed:           conf.MoveSpeed,
		JumpVelocity:        conf.JumpVelocity,
		AttackRange:         conf.AttackRange,
		AttackConeCosine:    conf.AttackConeCosine,
		BreakRange:          conf.BreakRange,
	}
	orch := orchestrator.New(orchConf)

	return &Server{
		conf:         conf,
		Orchestrator: orch,
		WAL:          w,
		Loot:         lootEngine,
		LootTables:   lootTables,
		Economy:      econ,
		Reactor:      reactorInst,
		World:        streamer,
		Recipes:      recipe.NewGraph(),
		Metrics:      reg,
		shutdown:     NewShutdownSignal(),
	}, nil
}

// Run starts every long-lived goroutine (tick orchestrator, reactor) and
// blocks until ctx is cancelled, mirroring the teacher's Server.Start/Run
// split collapsed into one call since this package has no network
// acceptance loop of its own.
func (s *Server) Run(ctx context.Context) {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.Reactor.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.Orchestrator.Run(ctx)
	}()

	<-ctx.Done()
	s.shutdown.Fire()
}

// Close stops every subsystem and releases their resources in dependency
// order: the orchestrator first (so nothing mutates the world or queues
// further WAL writes), then the reactor, then the world streamer (which
// flushes resident chunks), then the WAL.
func (s *Server) Close() error {
	s.Orchestrator.Stop()
	s.Reactor.Stop()
	s.wg.Wait()

	if err := s.World.Close(); err != nil {
		return err
	}
	return s.WAL.Close()
}

// Log returns the logger every subsystem was configured with.
func (s *Server) Log() *slog.Logger { return s.conf.Log }
