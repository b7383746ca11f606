package actions

import (
	"math"
	"testing"

	"execdisorder/internal/sim/bus"
)

type fakeDisorder struct {
	deltas  []float64
	reasons []string
}

func (f *fakeDisorder) ApplyDelta(amount float64, reason string) {
	f.deltas = append(f.deltas, amount)
	f.reasons = append(f.reasons, reason)
}

func newTestEconomy(t *testing.T, cfg Config) (*Economy, *fakeDisorder, *bus.Bus) {
	t.Helper()
	fd := &fakeDisorder{}
	b := bus.New()
	return NewEconomy(cfg, fd, b), fd, b
}

// With a bucket of 10 and no elapsed time, the 11th enqueue must fail
// on token exhaustion even though points and capacity would allow it.
func TestTryEnqueue_TokenBucketExhaustion(t *testing.T) {
	e, _, _ := newTestEconomy(t, Config{BucketCap: 10, RefillRate: 10, QueueCap: 20, MaxPoints: 1000})

	accepted := 0
	for i := 0; i < 11; i++ {
		if e.TryEnqueue(Action{ID: "a", Cost: 1}) {
			accepted++
		}
	}
	if accepted != 10 {
		t.Fatalf("accepted %d actions, want 10", accepted)
	}
	if e.Tokens() != 0 {
		t.Fatalf("tokens %v, want 0", e.Tokens())
	}

	// Half a second refills 5 whole tokens.
	e.Step(0.5)
	if math.Abs(e.Tokens()-5) > 1e-9 {
		t.Fatalf("tokens after refill %v, want 5", e.Tokens())
	}
}

func TestTryEnqueue_RejectionsLeaveStateUntouched(t *testing.T) {
	e, _, _ := newTestEconomy(t, Config{QueueCap: 2, MaxPoints: 10, BucketCap: 10})

	if e.TryEnqueue(Action{ID: "", Cost: 1}) {
		t.Fatalf("empty id accepted")
	}
	if e.TryEnqueue(Action{ID: "big", Cost: 50}) {
		t.Fatalf("unaffordable action accepted")
	}
	if e.Points() != 10 || e.Tokens() != 10 || e.QueueLen() != 0 {
		t.Fatalf("rejection mutated state: points=%v tokens=%v queue=%d",
			e.Points(), e.Tokens(), e.QueueLen())
	}

	e.TryEnqueue(Action{ID: "a", Cost: 1})
	e.TryEnqueue(Action{ID: "b", Cost: 1})
	if e.TryEnqueue(Action{ID: "c", Cost: 1}) {
		t.Fatalf("queue overfilled past capacity")
	}
	if e.QueueLen() != 2 {
		t.Fatalf("queue length %d, want 2", e.QueueLen())
	}
}

func TestStep_ExecutesExactlyOnePerTick(t *testing.T) {
	e, fd, b := newTestEconomy(t, Config{})

	executed := []string{}
	bus.Subscribe(b, func(ev Executed) { executed = append(executed, ev.Action.ID) })

	done := 0
	e.TryEnqueue(Action{ID: "first", Cost: 1, Effect: -3, OnComplete: func() { done++ }})
	e.TryEnqueue(Action{ID: "second", Cost: 1, Effect: 2})

	e.Step(0.02)
	if len(executed) != 1 || executed[0] != "first" {
		t.Fatalf("executed %v, want [first]", executed)
	}
	if done != 1 {
		t.Fatalf("completion callback ran %d times", done)
	}
	// Effect magnitude always lands as a negative disorder delta.
	if len(fd.deltas) != 1 || fd.deltas[0] != -3 {
		t.Fatalf("disorder deltas %v, want [-3]", fd.deltas)
	}
	if fd.reasons[0] != "action:first" {
		t.Fatalf("reason %q", fd.reasons[0])
	}

	e.Step(0.02)
	if len(executed) != 2 || executed[1] != "second" {
		t.Fatalf("executed %v, want FIFO order", executed)
	}
	if fd.deltas[1] != -2 {
		t.Fatalf("positive effect not negated: %v", fd.deltas[1])
	}
}

func TestStep_NilDisorderControllerIsNoop(t *testing.T) {
	b := bus.New()
	e := NewEconomy(Config{}, nil, b)
	e.TryEnqueue(Action{ID: "a", Cost: 1, Effect: 5})
	e.Step(0.02) // must not panic
	if e.ExecutedCount() != 1 {
		t.Fatalf("executed count %d, want 1", e.ExecutedCount())
	}
}

func TestStep_PointsRegenAndNotification(t *testing.T) {
	e, _, b := newTestEconomy(t, Config{MaxPoints: 100, RegenRate: 5})

	var fractions []float64
	bus.Subscribe(b, func(ev PointsChanged) { fractions = append(fractions, ev.Fraction) })

	// Saturated pool: regen must not churn out notifications.
	e.Step(1)
	if len(fractions) != 0 {
		t.Fatalf("saturated regen notified: %v", fractions)
	}

	e.TryEnqueue(Action{ID: "a", Cost: 20})
	if len(fractions) != 1 || math.Abs(fractions[0]-0.8) > 1e-9 {
		t.Fatalf("enqueue notification %v, want [0.8]", fractions)
	}

	e.Step(1) // +5 points
	if math.Abs(e.Points()-85) > 1e-9 {
		t.Fatalf("points %v, want 85", e.Points())
	}
	if len(fractions) != 2 {
		t.Fatalf("regen below max must notify")
	}

	// Bounds hold under arbitrary stepping.
	for i := 0; i < 100; i++ {
		e.Step(0.5)
	}
	if e.Points() > 100 || e.Tokens() > 10 {
		t.Fatalf("bounds violated: points=%v tokens=%v", e.Points(), e.Tokens())
	}
}

func TestRestore(t *testing.T) {
	e, _, _ := newTestEconomy(t, Config{})
	e.Restore(42, 3, []Action{{ID: "queued", Cost: 2, Effect: 1}})
	if e.Points() != 42 || e.Tokens() != 3 {
		t.Fatalf("restored points=%v tokens=%v", e.Points(), e.Tokens())
	}
	ids := e.QueuedIDs()
	if len(ids) != 1 || ids[0] != "queued" {
		t.Fatalf("restored queue %v", ids)
	}

	// Out-of-range snapshot values clamp rather than corrupt.
	e.Restore(1e6, -5, nil)
	if e.Points() != 100 || e.Tokens() != 0 {
		t.Fatalf("restore did not clamp: points=%v tokens=%v", e.Points(), e.Tokens())
	}
}
