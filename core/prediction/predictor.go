// Package prediction implements the client-side prediction and
// reconciliation system: a controlled entity predicts its own
// movement locally using the same integrator the server uses, then
// reconciles against authoritative snapshots as they arrive, absorbing the
// correction into a visual blend so the player never perceives a snap.
package prediction

import "github.com/go-gl/mathgl/mgl64"

// ringSize bounds the recorded-input ring to a fixed history depth.
const ringSize = 128

// Input is the client-side form of one tick's sampled input: a move vector
// quantized to [-1,1] per axis, matching the inbound input's wire contract.
type Input struct {
	Move [3]int8
}

// sample is one entry in the prediction ring: the tick it was produced on,
// the input applied, and the resulting predicted position.
type sample struct {
	tick      int64
	input     Input
	predicted mgl64.Vec3
	valid     bool
}

// Curve shapes how a visual residual decays over the blend window.
// progress is in [0,1]; the returned value is the fraction of the residual
// that has been absorbed.
type Curve func(progress float64) float64

// HardSnap applies the full correction on the very next frame. Kept only
// for reference: Smoothstep is the default curve.
func HardSnap(float64) float64 { return 1 }

// Linear absorbs the residual at a constant rate.
func Linear(p float64) float64 { return p }

// EaseOut decelerates into the target, absorbing most of the residual early.
func EaseOut(p float64) float64 { return 1 - (1-p)*(1-p) }

// Smoothstep is the default curve: zero first derivative at both ends, so
// the correction neither starts nor ends with a visible kink.
func Smoothstep(p float64) float64 { return 3*p*p - 2*p*p*p }

// Config configures a Predictor.
type Config struct {
	// Gravity, MinY, MaxY parameterize the integrator. These must match the
	// server's orchestrator.Physics configuration bit-for-bit (to within f32
	// rounding) or prediction will systematically diverge.
	Gravity    float64
	MinY, MaxY float32
	// MoveSpeed converts a unit move-vector component into a horizontal
	// velocity (blocks/s), mirroring how the server derives velocity from
	// the same quantized input.
	MoveSpeed float64
	// EpsilonIgnore is the error magnitude below which a reconciliation is a
	// no-op.
	EpsilonIgnore float64
	// EpsilonSnap is the error magnitude at or above which reconciliation
	// hard-resets and replays, rather than smoothing.
	EpsilonSnap float64
	// SmoothFraction is the fraction of the error corrected immediately in
	// the smooth region, with the remainder absorbed visually.
	SmoothFraction float64
	// BlendSeconds is the visual blend duration for a smooth-region
	// correction, on the order of 100ms.
	BlendSeconds float64
	// Curve shapes the visual blend. Defaults to Smoothstep.
	Curve Curve
}

func (c *Config) applyDefaults() {
	if c.EpsilonIgnore <= 0 {
		c.EpsilonIgnore = 0.002
	}
	if c.EpsilonSnap <= 0 {
		c.EpsilonSnap = 1.0
	}
	if c.SmoothFraction <= 0 {
		c.SmoothFraction = 0.2
	}
	if c.BlendSeconds <= 0 {
		c.BlendSeconds = 0.1
	}
	if c.Curve == nil {
		c.Curve = Smoothstep
	}
}

// Predictor tracks one locally controlled entity's predicted state, its
// ring of recent (tick, input, predicted_position) entries, and the visual
// interpolator absorbing reconciliation corrections.
type Predictor struct {
	conf Config

	pos, vel mgl64.Vec3
	ring     [ringSize]sample
	head     int
	count    int

	visual Interpolator
}

// NewPredictor creates a Predictor starting at pos with zero velocity.
func NewPredictor(conf Config, pos mgl64.Vec3) *Predictor {
	conf.applyDefaults()
	return &Predictor{conf: conf, pos: pos, visual: Interpolator{Curve: conf.Curve}}
}

// LogicalPosition returns the post-reconciliation position used for
// collision, hit detection, and input replay.
func (p *Predictor) LogicalPosition() mgl64.Vec3 { return p.pos }

// VisualPosition returns the position to render this frame: the logical
// position plus whatever correction the visual interpolator has not yet
// absorbed.
func (p *Predictor) VisualPosition() mgl64.Vec3 { return p.visual.Apply(p.pos) }

// Advance progresses the visual blend by dt seconds. Call once per render
// frame, independent of the tick rate.
func (p *Predictor) Advance(dt float64) { p.visual.Advance(dt) }

// Tick advances the predicted state by one local tick using the given
// input, recording the result in the ring for later reconciliation replay.
func (p *Predictor) Tick(tick int64, in Input, dt float64) {
	p.pos, p.vel = p.step(p.pos, p.vel, in, dt)
	p.record(tick, in, p.pos)
}

// step applies one integration step: horizontal velocity from the move
// vector, gravity unless grounded, and a clamp to the world's vertical
// range — the same numeric semantics orchestrator.Physics.Step applies
// server-side, restated here so client and server diverge only by f32
// rounding.
func (p *Predictor) step(pos, vel mgl64.Vec3, in Input, dt float64) (mgl64.Vec3, mgl64.Vec3) {
	vel[0] = float64(in.Move[0]) * p.conf.MoveSpeed
	vel[2] = float64(in.Move[2]) * p.conf.MoveSpeed
	grounded := pos[1] <= float64(p.conf.MinY) && vel[1] <= 0
	if !grounded {
		vel[1] -= p.conf.Gravity
	}
	next := pos.Add(vel.Mul(dt))
	if next[1] < float64(p.conf.MinY) {
		next[1], vel[1] = float64(p.conf.MinY), 0
	}
	if next[1] > float64(p.conf.MaxY) {
		next[1], vel[1] = float64(p.conf.MaxY), 0
	}
	return next, vel
}

// record stores (tick, input, predicted) in the ring, overwriting the
// oldest entry once the ring is full.
func (p *Predictor) record(tick int64, in Input, predicted mgl64.Vec3) {
	p.ring[p.head] = sample{tick: tick, input: in, predicted: predicted, valid: true}
	p.head = (p.head + 1) % ringSize
	if p.count < ringSize {
		p.count++
	}
}

// find performs a linear scan (the ring is small enough that a scan beats
// any index) for the recorded sample at tick s.
func (p *Predictor) find(s int64) (sample, bool) {
	for i := 0; i < p.count; i++ {
		idx := (p.head - 1 - i + ringSize) % ringSize
		if p.ring[idx].valid && p.ring[idx].tick == s {
			return p.ring[idx], true
		}
		if p.ring[idx].valid && p.ring[idx].tick < s {
			break
		}
	}
	return sample{}, false
}

// Reconcile applies server reconciliation for an authoritative snapshot of
// tick s: locate the matching predicted position, compute the error, and
// either ignore it, snap-and-replay, or smooth it, recording the
// appropriate visual residual in each case.
func (p *Predictor) Reconcile(s int64, serverPos mgl64.Vec3, dt float64) {
	predictedAtS, ok := p.find(s)
	if !ok {
		// No matching recorded tick (evicted from the ring or never seen
		// locally): nothing to reconcile against.
		return
	}
	errVec := serverPos.Sub(predictedAtS.predicted)
	mag := errVec.Len()

	switch {
	case mag < p.conf.EpsilonIgnore:
		return
	case mag >= p.conf.EpsilonSnap:
		oldPredicted := p.pos
		p.pos = serverPos
		p.replayAfter(s, dt)
		p.visual.SetResidual(oldPredicted.Sub(p.pos), p.conf.BlendSeconds)
	default:
		oldPredicted := p.pos
		p.pos = p.pos.Add(errVec.Mul(p.conf.SmoothFraction))
		p.visual.SetResidual(oldPredicted.Sub(p.pos), p.conf.BlendSeconds)
	}
}

// replayAfter re-integrates every ring entry recorded after tick s, in
// order, starting from the now-corrected p.pos, producing a new predicted
// position. Matches the ring entries' own recorded inputs, not the current
// input, so the replay is bit-identical to what would have happened had
// the correction been known at the time.
func (p *Predictor) replayAfter(s int64, dt float64) {
	type entry struct {
		tick int64
		in   Input
	}
	var toReplay []entry
	for i := 0; i < p.count; i++ {
		idx := (p.head - 1 - i + ringSize) % ringSize
		e := p.ring[idx]
		if !e.valid || e.tick <= s {
			continue
		}
		toReplay = append(toReplay, entry{tick: e.tick, in: e.input})
	}
	// toReplay was collected newest-first; replay oldest-first.
	for i := len(toReplay) - 1; i >= 0; i-- {
		e := toReplay[i]
		p.pos, p.vel = p.step(p.pos, p.vel, e.in, dt)
		p.record(e.tick, e.in, p.pos)
	}
}
