// Package metrics tracks process-wide observability counters and gauges
// for the tick orchestrator, WAL, loot engine, reactor, and world streamer.
//
// Registry is a mutex-guarded struct of plain counters, nil-receiver-safe
// so a component can be constructed without metrics wired and simply
// no-op.
package metrics

import "sync"

// Registry holds every counter and gauge the CORE exposes. A nil *Registry
// is valid and every method on it no-ops, so callers can wire metrics
// optionally without guarding every call site.
type Registry struct {
	mu sync.Mutex

	ticksCompleted   uint64
	tickDurationsNs  []uint64
	snapshotBytes    uint64
	walAppends       uint64
	walBackpressure  uint64
	walBatches       uint64
	lootFastPath     uint64
	lootSecurePath   uint64
	reconcileSnaps   uint64
	reconcileIgnores uint64
	chunksGenerated  uint64
	chunksLoaded     uint64
	chunksEvicted    uint64
	reactorLatencyNs uint64
}

// New creates an empty Registry.
func New() *Registry { return &Registry{} }

// RecordTick appends a completed tick's wall-clock duration, in
// nanoseconds, for later percentile reporting by an operator console.
func (r *Registry) RecordTick(durationNs uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.ticksCompleted++
	const maxSamples = 600 // ten seconds of history at 60Hz.
	if len(r.tickDurationsNs) >= maxSamples {
		r.tickDurationsNs = r.tickDurationsNs[1:]
	}
	r.tickDurationsNs = append(r.tickDurationsNs, durationNs)
	r.mu.Unlock()
}

// AddSnapshotBytes accumulates the size of snapshots sent to clients.
func (r *Registry) AddSnapshotBytes(n uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.snapshotBytes += n
	r.mu.Unlock()
}

// IncWALAppend counts a successful WAL append.
func (r *Registry) IncWALAppend() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.walAppends++
	r.mu.Unlock()
}

// IncWALBackpressure counts an Append call that failed with Backpressure.
func (r *Registry) IncWALBackpressure() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.walBackpressure++
	r.mu.Unlock()
}

// IncWALBatch counts one flushed WAL batch.
func (r *Registry) IncWALBatch() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.walBatches++
	r.mu.Unlock()
}

// IncLootFastPath counts a loot roll served by the O(1) fast path.
func (r *Registry) IncLootFastPath() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.lootFastPath++
	r.mu.Unlock()
}

// IncLootSecurePath counts a loot roll served by the keyed-PRF secure path.
func (r *Registry) IncLootSecurePath() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.lootSecurePath++
	r.mu.Unlock()
}

// IncReconcileSnap counts a prediction reconciliation that hard-snapped.
func (r *Registry) IncReconcileSnap() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.reconcileSnaps++
	r.mu.Unlock()
}

// IncReconcileIgnore counts a reconciliation within the ignore epsilon.
func (r *Registry) IncReconcileIgnore() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.reconcileIgnores++
	r.mu.Unlock()
}

// IncChunkGenerated counts a chunk produced by procedural generation
// rather than loaded from the provider.
func (r *Registry) IncChunkGenerated() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.chunksGenerated++
	r.mu.Unlock()
}

// IncChunkLoaded counts a chunk loaded from the provider.
func (r *Registry) IncChunkLoaded() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.chunksLoaded++
	r.mu.Unlock()
}

// IncChunkEvicted counts a chunk evicted from the resident set.
func (r *Registry) IncChunkEvicted() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.chunksEvicted++
	r.mu.Unlock()
}

// ObserveReactorLatency records the processing latency of one reactor
// event, keeping only the worst seen so an operator can confirm the
// sub-millisecond target is holding.
func (r *Registry) ObserveReactorLatency(ns uint64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if ns > r.reactorLatencyNs {
		r.reactorLatencyNs = ns
	}
	r.mu.Unlock()
}

// Snapshot is a point-in-time copy of every counter/gauge, safe to read
// without holding the Registry's lock.
type Snapshot struct {
	TicksCompleted    uint64
	MeanTickNs        uint64
	SnapshotBytes     uint64
	WALAppends        uint64
	WALBackpressure   uint64
	WALBatches        uint64
	LootFastPath      uint64
	LootSecurePath    uint64
	ReconcileSnaps    uint64
	ReconcileIgnores  uint64
	ChunksGenerated   uint64
	ChunksLoaded      uint64
	ChunksEvicted     uint64
	WorstReactorNs    uint64
}

// Snapshot copies out the current counters for reporting, e.g. by the
// operator console's status command.
func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var mean uint64
	if len(r.tickDurationsNs) > 0 {
		var sum uint64
		for _, d := range r.tickDurationsNs {
			sum += d
		}
		mean = sum / uint64(len(r.tickDurationsNs))
	}
	return Snapshot{
		TicksCompleted:   r.ticksCompleted,
		MeanTickNs:       mean,
		SnapshotBytes:    r.snapshotBytes,
		WALAppends:       r.walAppends,
		WALBackpressure:  r.walBackpressure,
		WALBatches:       r.walBatches,
		LootFastPath:     r.lootFastPath,
		LootSecurePath:   r.lootSecurePath,
		ReconcileSnaps:   r.reconcileSnaps,
		ReconcileIgnores: r.reconcileIgnores,
		ChunksGenerated:  r.chunksGenerated,
		ChunksLoaded:     r.chunksLoaded,
		ChunksEvicted:    r.chunksEvicted,
		WorstReactorNs:   r.reactorLatencyNs,
	}
}
