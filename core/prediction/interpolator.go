package prediction

import "github.com/go-gl/mathgl/mgl64"

// Interpolator absorbs a reconciliation correction over a configurable
// duration so the rendered position never visibly snaps. The logical
// position (used for collision and replay) jumps immediately; the visual
// position lags behind it, decaying the residual offset according to
// Curve.
type Interpolator struct {
	Curve Curve

	residual  mgl64.Vec3
	progress  float64
	blendTime float64
}

// SetResidual begins (or restarts) a blend: visual_position will start at
// logical_position+residual and decay toward logical_position over
// blendSeconds.
func (i *Interpolator) SetResidual(residual mgl64.Vec3, blendSeconds float64) {
	i.residual = residual
	i.progress = 0
	i.blendTime = blendSeconds
}

// Advance progresses the blend by dt seconds.
func (i *Interpolator) Advance(dt float64) {
	if i.blendTime <= 0 {
		i.progress = 1
		return
	}
	i.progress += dt / i.blendTime
	if i.progress > 1 {
		i.progress = 1
	}
}

// Apply returns logical + residual*(1-curve(progress)): the full residual
// at progress==0, decaying to zero at progress==1.
func (i *Interpolator) Apply(logical mgl64.Vec3) mgl64.Vec3 {
	curve := i.Curve
	if curve == nil {
		curve = Smoothstep
	}
	remaining := 1 - curve(i.progress)
	return logical.Add(i.residual.Mul(remaining))
}

// SnapshotInterpolator renders a remote (not locally controlled) entity by
// linearly interpolating between the two most recent authoritative
// positions, parameterized by elapsed time since the newer one relative to
// the inter-snapshot interval.
type SnapshotInterpolator struct {
	prevTick, nextTick int64
	prev, next         mgl64.Vec3
	interval           float64
}

// Push records a newly arrived authoritative position for tick, sliding the
// interpolator's window forward. interval is the expected time between
// snapshots (1/tick_rate), used to parameterize Position.
func (s *SnapshotInterpolator) Push(tick int64, pos mgl64.Vec3, interval float64) {
	if tick <= s.nextTick && s.nextTick != 0 {
		return
	}
	s.prevTick, s.prev = s.nextTick, s.next
	s.nextTick, s.next = tick, pos
	s.interval = interval
}

// Position returns the interpolated render position, elapsedSinceNewer
// seconds after the most recent pushed snapshot, clamped to [0,1] of the
// inter-snapshot interval.
func (s *SnapshotInterpolator) Position(elapsedSinceNewer float64) mgl64.Vec3 {
	if s.prevTick == 0 && s.prev == (mgl64.Vec3{}) {
		return s.next
	}
	if s.interval <= 0 {
		return s.next
	}
	t := elapsedSinceNewer / s.interval
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return s.prev.Add(s.next.Sub(s.prev).Mul(t))
}
