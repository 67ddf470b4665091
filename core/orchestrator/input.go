package orchestrator

import "github.com/google/uuid"

// InputFlags is a bitfield of held client buttons, carried verbatim from the
// inbound datagram.
type InputFlags uint8

const (
	FlagJump InputFlags = 1 << iota
	FlagCrouch
	FlagSprint
	FlagFire
	FlagAim
)

// Has reports whether flag is set.
func (f InputFlags) Has(flag InputFlags) bool { return f&flag != 0 }

// ActionTag identifies the action a client requested this tick.
type ActionTag uint8

const (
	ActionNone ActionTag = iota
	ActionMove
	ActionBreakBlock
	ActionPlaceBlock
	ActionAttack
	ActionUseItem
)

// Input is the parsed form of an inbound Input datagram. The move
// vector is quantized to [-1,1] per axis the way a network layer would pack
// it, and aim yaw/pitch arrive as i16 the way the wire format specifies.
type Input struct {
	Client          uuid.UUID
	Tick            int64
	Sequence        uint32
	Move            [3]int8
	Flags           InputFlags
	Yaw, Pitch      int16
	Action          ActionTag
	ClientTimestamp int64
}

// DatagramKind enumerates the parsed forms an inbound datagram can take.
type DatagramKind uint8

const (
	DatagramConnect DatagramKind = iota
	DatagramDisconnect
	DatagramHeartbeat
	DatagramInput
)

// Datagram is the decoded form of one inbound client datagram. Framing is
// not prescribed; a transport adapter is expected to populate this
// struct and hand it to the orchestrator's input queue. A malformed
// datagram is the transport's problem to detect and drop silently;
// the orchestrator never sees it.
type Datagram struct {
	Kind  DatagramKind
	Input Input
}

// InputQueue is implemented by the transport layer: it buffers arrived
// datagrams per client and hands back the most recently queued ones when
// drained. The orchestrator treats it as an external collaborator.
type InputQueue interface {
	// Drain returns and clears all datagrams that arrived since the last
	// call, across all connected clients.
	Drain() []Datagram
}
