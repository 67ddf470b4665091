package reactor

import (
	"testing"
	"time"
)

func TestReactorSubMillisecondReaction(t *testing.T) {
	r := New(Config{StalkThreshold: 10, InfernoThreshold: 50, Cooldown: 0})
	go r.Run()
	defer r.Stop()

	r.Submit(MarketEvent{Timestamp: time.Now(), Volatility: 100})

	deadline := time.Now().Add(1 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r.State().State() == Inferno {
			break
		}
	}
	if r.State().State() != Inferno {
		t.Fatalf("expected state to transition to Inferno within 1ms, got %v", r.State().State())
	}
	if r.State().WorstLatencyNs() >= uint64(time.Millisecond) {
		t.Fatalf("expected worst latency under 1ms, got %dns", r.State().WorstLatencyNs())
	}
}

func TestReactorCooldownSuppressesRapidTransitions(t *testing.T) {
	r := New(Config{StalkThreshold: 10, InfernoThreshold: 50, Cooldown: time.Hour})
	go r.Run()
	defer r.Stop()

	r.Submit(MarketEvent{Timestamp: time.Now(), Volatility: 100})
	time.Sleep(2 * time.Millisecond)
	if r.State().State() != Inferno {
		t.Fatalf("expected first transition to commit, got %v", r.State().State())
	}
	countAfterFirst := r.State().ChangeCount()

	r.Submit(MarketEvent{Timestamp: time.Now(), Volatility: 1})
	time.Sleep(2 * time.Millisecond)
	if r.State().State() != Inferno {
		t.Fatalf("expected cooldown to suppress the second transition, got %v", r.State().State())
	}
	if r.State().ChangeCount() != countAfterFirst {
		t.Fatalf("change_count must stay monotone-but-unchanged while cooldown suppresses a transition")
	}
}

func TestTargetStatePartitioning(t *testing.T) {
	cases := []struct {
		vol  float64
		want DragonStateKind
	}{
		{0, Sleep},
		{9.9, Sleep},
		{10, Stalk},
		{49.9, Stalk},
		{50, Inferno},
	}
	for _, c := range cases {
		if got := targetState(c.vol, 10, 50); got != c.want {
			t.Errorf("targetState(%v) = %v, want %v", c.vol, got, c.want)
		}
	}
}

func TestOrderingIsArrivalOrder(t *testing.T) {
	r := New(Config{StalkThreshold: 10, InfernoThreshold: 50, Cooldown: 0})
	go r.Run()
	defer r.Stop()

	for i := 0; i < 50; i++ {
		r.Submit(MarketEvent{Timestamp: time.Now(), Volatility: 1})
	}
	r.Submit(MarketEvent{Timestamp: time.Now(), Volatility: 100})

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r.State().State() == Inferno {
			return
		}
	}
	t.Fatalf("expected eventual Inferno state after processing the burst, got %v", r.State().State())
}
