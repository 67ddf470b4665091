package orchestrator

import (
	"github.com/dragonkeep/server/core/entitystore"
	"github.com/google/uuid"
)

// clientState is the orchestrator's bookkeeping for one connected client:
// the entity it controls, its last applied input, and the tick that input
// arrived on, used to detect timeouts.
type clientState struct {
	entity       entitystore.EntityId
	lastInput    Input
	hasInput     bool
	lastInputAt  int64
	lastBaseline int64
}

// clientTable holds per-client bookkeeping. It is owned exclusively by the
// orchestrator thread, so it needs no synchronization of its own.
type clientTable struct {
	clients map[uuid.UUID]*clientState
}

func newClientTable() *clientTable {
	return &clientTable{clients: make(map[uuid.UUID]*clientState)}
}

func (c *clientTable) connect(id uuid.UUID, entity entitystore.EntityId) {
	c.clients[id] = &clientState{entity: entity}
}

func (c *clientTable) disconnect(id uuid.UUID) {
	delete(c.clients, id)
}

func (c *clientTable) apply(d Datagram, tick int64) {
	switch d.Kind {
	case DatagramInput:
		if st, ok := c.clients[d.Input.Client]; ok {
			st.lastInput = d.Input
			st.hasInput = true
			st.lastInputAt = tick
		}
	case DatagramHeartbeat:
		// Heartbeats only refresh liveness, not the applied input.
	}
}

// timedOut reports whether a client has not supplied an input for longer
// than timeoutTicks ticks.
func (c *clientTable) timedOut(id uuid.UUID, tick int64, timeoutTicks int64) bool {
	st, ok := c.clients[id]
	if !ok || !st.hasInput {
		return false
	}
	return tick-st.lastInputAt > timeoutTicks
}

// ids returns a stable snapshot of currently connected client ids.
func (c *clientTable) ids() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(c.clients))
	for id := range c.clients {
		out = append(out, id)
	}
	return out
}
