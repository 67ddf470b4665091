// Package reactor implements the external-event reactor: a
// dedicated thread reacting to external market signals in O(μs),
// decoupled from the 60 Hz tick loop, publishing its current state via a
// small struct of atomics any thread may read lock-free.
package reactor

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DragonStateKind enumerates the three states the reactor drives.
type DragonStateKind uint8

const (
	Sleep DragonStateKind = iota
	Stalk
	Inferno
)

func (k DragonStateKind) String() string {
	switch k {
	case Sleep:
		return "sleep"
	case Stalk:
		return "stalk"
	case Inferno:
		return "inferno"
	default:
		return "unknown"
	}
}

// MarketEvent is one external market signal delivered to the reactor.
type MarketEvent struct {
	Timestamp  time.Time
	Price      float64
	Volatility float64
	Type       uint8
}

// Broadcast is published to the output queue whenever the reactor commits
// a state transition.
type Broadcast struct {
	Timestamp       time.Time
	NewState        DragonStateKind
	Aggression      uint8
	ObservedLatency time.Duration
}

// SharedState is the lock-free struct of atomics any thread may read to
// observe the reactor's current published state.
type SharedState struct {
	state        atomic.Uint32 // DragonStateKind
	aggression   atomic.Uint32
	lastUpdateNs atomic.Uint64
	changeCount  atomic.Uint64
	worstLatency atomic.Uint64
}

// State returns the currently published dragon state and aggression.
func (s *SharedState) State() DragonStateKind { return DragonStateKind(s.state.Load()) }

// Aggression returns the currently published aggression level (0-255).
func (s *SharedState) Aggression() uint8 { return uint8(s.aggression.Load()) }

// LastUpdateNs returns the wall-clock nanosecond timestamp of the most
// recent committed transition.
func (s *SharedState) LastUpdateNs() uint64 { return s.lastUpdateNs.Load() }

// ChangeCount returns how many state transitions have been committed. Atomic
// state reads are monotone in this counter.
func (s *SharedState) ChangeCount() uint64 { return s.changeCount.Load() }

// WorstLatencyNs returns the worst observed input-to-publish latency, in
// nanoseconds, across the reactor's lifetime.
func (s *SharedState) WorstLatencyNs() uint64 { return s.worstLatency.Load() }

func (s *SharedState) publish(now time.Time, state DragonStateKind, aggression uint8, latency time.Duration, committed bool) {
	s.state.Store(uint32(state))
	s.aggression.Store(uint32(aggression))
	if committed {
		s.lastUpdateNs.Store(uint64(now.UnixNano()))
		s.changeCount.Add(1)
	}
	for {
		cur := s.worstLatency.Load()
		if uint64(latency) <= cur {
			break
		}
		if s.worstLatency.CompareAndSwap(cur, uint64(latency)) {
			break
		}
	}
}

// Config configures a Reactor.
type Config struct {
	Log *slog.Logger
	// InputCapacity bounds the input MarketEvent queue.
	InputCapacity int
	// OutputCapacity bounds the published Broadcast queue.
	OutputCapacity int
	// StalkThreshold and InfernoThreshold partition volatility into the
	// three states Sleep / Stalk / Inferno.
	StalkThreshold, InfernoThreshold float64
	// Cooldown is the minimum duration between committed state changes.
	Cooldown time.Duration
	// MaxLatency is the configured bound past which an observed latency
	// logs a warning; state publication still proceeds regardless.
	MaxLatency time.Duration
}

func (c *Config) applyDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.InputCapacity <= 0 {
		c.InputCapacity = 4096
	}
	if c.OutputCapacity <= 0 {
		c.OutputCapacity = 1024
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 100 * time.Millisecond
	}
	if c.MaxLatency <= 0 {
		c.MaxLatency = time.Millisecond
	}
}

// Reactor is a dedicated off-tick thread that consumes MarketEvents in
// strict arrival order and publishes DragonBroadcast state transitions.
type Reactor struct {
	conf Config

	input  chan MarketEvent
	output chan Broadcast

	shared SharedState

	lastChange atomic.Int64 // unix nanos

	closing  chan struct{}
	stopped  sync.WaitGroup
	stopOnce sync.Once
}

// New creates a Reactor. Run must be called to start the consuming
// goroutine.
func New(conf Config) *Reactor {
	conf.applyDefaults()
	return &Reactor{
		conf:    conf,
		input:   make(chan MarketEvent, conf.InputCapacity),
		output:  make(chan Broadcast, conf.OutputCapacity),
		closing: make(chan struct{}),
	}
}

// Submit enqueues an event for processing. It never blocks the caller: if
// the input queue is full, the oldest queued event is dropped to make
// room. What matters is that the latest processed state reflects the most
// recent event, not that every event is processed.
func (r *Reactor) Submit(ev MarketEvent) {
	select {
	case r.input <- ev:
	default:
		select {
		case <-r.input:
		default:
		}
		select {
		case r.input <- ev:
		default:
		}
	}
}

// Broadcasts returns the channel of committed state-transition broadcasts.
func (r *Reactor) Broadcasts() <-chan Broadcast { return r.output }

// State returns the reactor's lock-free shared state, safe to read from any
// thread, including the orchestrator between tick phases.
func (r *Reactor) State() *SharedState { return &r.shared }

// Run consumes events in arrival order until Stop is called, draining any
// already-queued events before exiting, the same shutdown discipline the
// WAL writer and orchestrator observe.
func (r *Reactor) Run() {
	r.stopped.Add(1)
	defer r.stopped.Done()
	for {
		select {
		case ev := <-r.input:
			r.process(ev)
		case <-r.closing:
			for {
				select {
				case ev := <-r.input:
					r.process(ev)
				default:
					return
				}
			}
		}
	}
}

// Stop signals the reactor to process any drained events then exit. It
// blocks until the consuming goroutine has stopped.
func (r *Reactor) Stop() {
	r.stopOnce.Do(func() { close(r.closing) })
	r.stopped.Wait()
}

// process computes the target state and aggression for ev, commits the
// transition if the target differs from the current state and cooldown has
// elapsed, and always updates latency bookkeeping.
func (r *Reactor) process(ev MarketEvent) {
	now := time.Now()
	latency := now.Sub(ev.Timestamp)
	if latency > r.conf.MaxLatency {
		r.conf.Log.Warn("reactor: observed latency exceeded configured max", "latency", latency, "max", r.conf.MaxLatency)
	}

	target := targetState(ev.Volatility, r.conf.StalkThreshold, r.conf.InfernoThreshold)
	aggression := computeAggression(ev.Volatility, r.conf.StalkThreshold, r.conf.InfernoThreshold)

	current := r.shared.State()
	lastChangeNs := r.lastChange.Load()
	sinceChange := now.Sub(time.Unix(0, lastChangeNs))
	if target != current && (lastChangeNs == 0 || sinceChange >= r.conf.Cooldown) {
		r.lastChange.Store(now.UnixNano())
		r.shared.publish(now, target, aggression, latency, true)
		b := Broadcast{Timestamp: now, NewState: target, Aggression: aggression, ObservedLatency: latency}
		select {
		case r.output <- b:
		default:
			select {
			case <-r.output:
			default:
			}
			select {
			case r.output <- b:
			default:
			}
		}
		return
	}
	// No state transition, but latency/aggression bookkeeping still
	// proceeds: the invariant is the latest observed state, not only state
	// changes.
	r.shared.publish(now, current, aggression, latency, false)
}

// targetState partitions volatility into Sleep / Stalk / Inferno using the
// two configured thresholds.
func targetState(volatility, stalkThreshold, infernoThreshold float64) DragonStateKind {
	switch {
	case volatility >= infernoThreshold:
		return Inferno
	case volatility >= stalkThreshold:
		return Stalk
	default:
		return Sleep
	}
}

// computeAggression scales with how far volatility exceeds the active
// threshold, saturating at 255.
func computeAggression(volatility, stalkThreshold, infernoThreshold float64) uint8 {
	var over, span float64
	switch {
	case volatility >= infernoThreshold:
		over = volatility - infernoThreshold
		span = math.Max(infernoThreshold, 1)
	case volatility >= stalkThreshold:
		over = volatility - stalkThreshold
		span = math.Max(infernoThreshold-stalkThreshold, 1)
	default:
		return 0
	}
	frac := over / span
	if frac > 1 {
		frac = 1
	}
	return uint8(frac * 255)
}
