package orchestrator

import "github.com/dragonkeep/server/core/entitystore"

// Physics integrates every moving entity's position from its velocity,
// applies gravity to non-grounded entities, and clamps positions to the
// world's vertical range. It operates column-wise over the write buffer's
// Moving table so a single pass touches each column's backing array
// sequentially, a cache-friendly traversal order for columnar storage.
type Physics struct {
	// Gravity is the per-tick downward velocity delta applied to airborne
	// entities, mirroring entity.MovementComputer.Gravity.
	Gravity float64
	// MinY and MaxY bound the world's vertical range; positions are clamped
	// to this range after integration.
	MinY, MaxY float32
}

// Step advances every row of moving in place by dt, the fixed tick step
// (1/rate). Grounded entities (velocity Y already at rest on a surface) do
// not fall further than the clamp permits.
func (p Physics) Step(moving *entitystore.MovingTable, dt float64) {
	type update struct {
		id             entitystore.EntityId
		x, y, z        float32
		vx, vy, vz     float32
		posChanged     bool
		velChanged     bool
	}
	var updates []update
	moving.Each(func(id entitystore.EntityId, row entitystore.MovingRow) {
		grounded := row.PosY <= p.MinY && row.VelY <= 0
		vx, vy, vz := row.VelX, row.VelY, row.VelZ
		if !grounded {
			vy -= float32(p.Gravity)
		}
		x := row.PosX + vx*float32(dt)
		y := row.PosY + vy*float32(dt)
		z := row.PosZ + vz*float32(dt)
		if y < p.MinY {
			y, vy = p.MinY, 0
		}
		if y > p.MaxY {
			y, vy = p.MaxY, 0
		}
		u := update{id: id, x: x, y: y, z: z, vx: vx, vy: vy, vz: vz}
		u.posChanged = x != row.PosX || y != row.PosY || z != row.PosZ
		u.velChanged = vy != row.VelY
		if u.posChanged || u.velChanged {
			updates = append(updates, u)
		}
	})
	// Mutations are applied after the traversal completes: Each walks the
	// table's live slots directly, and SetPosition/SetVelocity must not be
	// interleaved with that walk.
	for _, u := range updates {
		if u.posChanged {
			_ = moving.SetPosition(u.id, u.x, u.y, u.z)
		}
		if u.velChanged {
			_ = moving.SetVelocity(u.id, u.vx, u.vy, u.vz)
		}
	}
}
