package orchestrator

import (
	"github.com/dragonkeep/server/core/entitystore"
	"github.com/google/uuid"
)

// MSnap is the maximum number of entity states a single Snapshot may carry.
// A tick with more entities than this is sent as several Snapshots of that
// tick (see Orchestrator.emitSnapshots).
const MSnap = 512

// EntityState is one entity's contribution to an outbound Snapshot.
type EntityState struct {
	ID       entitystore.EntityId
	X, Y, Z  float32
	VX, VY, VZ float32
	// Rotation is encoded as i16 the way the wire format quantizes yaw/pitch,
	// avoiding the cost of shipping float32 rotation for cosmetic fidelity
	// the client does not need bit-exact.
	Rotation int16
	Health   uint32
	Flags    uint8
}

// DragonState summarises the external-event reactor's published state
// as carried in every Snapshot.
type DragonState struct {
	State      uint8
	Aggression uint8
}

// Snapshot is the authoritative per-tick summary of world state broadcast to
// a client. len(Entities) must never exceed MSnap.
type Snapshot struct {
	Tick     int64
	Dragon   DragonState
	Entities []EntityState
}

// DeltaEntity is one changed entity's contribution to a Delta, quantized to
// centimeters to keep the wire payload small.
type DeltaEntity struct {
	ID             entitystore.EntityId
	XCm, YCm, ZCm  int16
	Health         uint32
	HealthChanged  bool
	RotationDelta  int16
	RotationChanged bool
}

// Delta encodes a Snapshot relative to an earlier baseline tick. Applying
// deltas in order from a known baseline must yield the same state as the
// corresponding full Snapshot.
type Delta struct {
	Tick     int64
	Baseline int64
	Changed  []DeltaEntity
	Removed  []entitystore.EntityId
}

// SnapshotSink is the transport-side collaborator that receives outbound
// per-client Snapshot or Delta payloads. The orchestrator sends every
// client full Snapshots each tick and does not call SendDelta.
type SnapshotSink interface {
	SendSnapshot(client uuid.UUID, s Snapshot)
	SendDelta(client uuid.UUID, d Delta)
}
