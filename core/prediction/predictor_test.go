package prediction

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func testConfig() Config {
	return Config{Gravity: 0.08, MinY: 0, MaxY: 256, MoveSpeed: 1, EpsilonIgnore: 0.01, EpsilonSnap: 1.0, SmoothFraction: 0.2, BlendSeconds: 0.1}
}

func TestReconcileIgnoresSmallError(t *testing.T) {
	p := NewPredictor(testConfig(), mgl64.Vec3{0, 10, 0})
	p.Tick(1, Input{}, 1.0/60)
	before := p.LogicalPosition()
	p.Reconcile(1, before.Add(mgl64.Vec3{0.001, 0, 0}), 1.0/60)
	if p.LogicalPosition() != before {
		t.Fatalf("expected no correction for error below epsilon_ignore, got %v vs %v", p.LogicalPosition(), before)
	}
}

func TestReconcileSmoothRegionConverges(t *testing.T) {
	// The entity starts on the floor (y = MinY), so gravity does not carry
	// it away from the fixed server position between reconciliations.
	p := NewPredictor(testConfig(), mgl64.Vec3{0, 0, 0})
	p.Tick(1, Input{}, 1.0/60)
	predicted := p.LogicalPosition()
	server := predicted.Add(mgl64.Vec3{0.5, 0, 0})

	// Repeated reconciliation against the same server position should
	// monotonically approach it.
	var lastDist = server.Sub(p.LogicalPosition()).Len()
	for i := 0; i < 20; i++ {
		p.Tick(int64(2+i), Input{}, 1.0/60)
		p.Reconcile(int64(2+i), server, 1.0/60)
		dist := server.Sub(p.LogicalPosition()).Len()
		if dist > lastDist+1e-9 {
			t.Fatalf("distance to server position increased: %v -> %v", lastDist, dist)
		}
		lastDist = dist
	}
}

func TestReconcileSnapRegionReplays(t *testing.T) {
	p := NewPredictor(testConfig(), mgl64.Vec3{0, 10, 0})
	for tick := int64(1); tick <= 5; tick++ {
		p.Tick(tick, Input{Move: [3]int8{1, 0, 0}}, 1.0/60)
	}
	// A large error at tick 3 should trigger a snap + replay of ticks 4-5.
	server := mgl64.Vec3{100, 10, 0}
	p.Reconcile(3, server, 1.0/60)
	// After replaying ticks 4 and 5 with the same move input, the resulting
	// position should have advanced past the bare server position (since
	// two more ticks of input were replayed).
	if got := p.LogicalPosition(); got[0] <= server[0] {
		t.Fatalf("expected the replay of ticks 4-5 to advance past the server position, got %v", got)
	}
	// The visual residual should have been populated, meaning VisualPosition
	// differs from LogicalPosition immediately after the snap.
	if p.VisualPosition() == p.LogicalPosition() {
		t.Fatalf("expected a visual residual immediately after a snap reconciliation")
	}
}

func TestVisualPositionConvergesToLogical(t *testing.T) {
	p := NewPredictor(testConfig(), mgl64.Vec3{0, 10, 0})
	p.Tick(1, Input{}, 1.0/60)
	p.Reconcile(1, p.LogicalPosition().Add(mgl64.Vec3{0, 0, 2}), 1.0/60)
	for i := 0; i < 100; i++ {
		p.Advance(0.016)
	}
	diff := p.VisualPosition().Sub(p.LogicalPosition()).Len()
	if diff > 1e-6 {
		t.Fatalf("visual position did not converge to logical position: residual %v", diff)
	}
}

func TestCurves(t *testing.T) {
	if HardSnap(0) != 1 {
		t.Fatalf("HardSnap should be 1 at any progress")
	}
	if Linear(0.5) != 0.5 {
		t.Fatalf("Linear(0.5) should be 0.5")
	}
	if got := Smoothstep(0); got != 0 {
		t.Fatalf("Smoothstep(0) should be 0, got %v", got)
	}
	if got := Smoothstep(1); got != 1 {
		t.Fatalf("Smoothstep(1) should be 1, got %v", got)
	}
	if got := EaseOut(0); got != 0 {
		t.Fatalf("EaseOut(0) should be 0, got %v", got)
	}
}

func TestSnapshotInterpolatorClampsToUnitInterval(t *testing.T) {
	var s SnapshotInterpolator
	s.Push(1, mgl64.Vec3{0, 0, 0}, 1.0/20)
	s.Push(2, mgl64.Vec3{10, 0, 0}, 1.0/20)

	mid := s.Position(1.0 / 40)
	if mid[0] < 4 || mid[0] > 6 {
		t.Fatalf("expected midpoint interpolation near x=5, got %v", mid)
	}
	late := s.Position(1.0)
	if late != (mgl64.Vec3{10, 0, 0}) {
		t.Fatalf("expected clamp to next position for elapsed beyond interval, got %v", late)
	}
}
