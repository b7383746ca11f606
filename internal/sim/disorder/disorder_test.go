package disorder

import (
	"testing"

	"execdisorder/internal/sim/bus"
)

func newTestMachine(t *testing.T, cfg Config) (*Machine, *bus.Bus) {
	t.Helper()
	b := bus.New()
	return NewMachine(cfg, b), b
}

// Starting idle, a large delta pushed across the critical threshold
// walks the phase through Idle -> Building -> Critical.
func TestPhases_EscalationSequence(t *testing.T) {
	m, b := newTestMachine(t, Config{CriticalThreshold: 75, CollapseThreshold: 95})

	var seen []Phase
	bus.Subscribe(b, func(e PhaseChanged) { seen = append(seen, e.Phase) })

	m.ApplyDelta(80, "test")
	m.Step(0.02)

	if m.Phase() != PhaseCritical {
		t.Fatalf("phase %v, want critical", m.Phase())
	}
	want := []Phase{PhaseBuilding, PhaseCritical}
	if len(seen) != len(want) {
		t.Fatalf("phase changes %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("phase changes %v, want %v", seen, want)
		}
	}
}

// Oscillating exactly at the critical threshold must not flap the
// phase every tick; hysteresis keeps it critical until the level falls
// below 0.8 * threshold.
func TestPhases_HystereticAtBoundary(t *testing.T) {
	m, b := newTestMachine(t, Config{BaseRate: 0, CriticalThreshold: 75, CollapseThreshold: 95})

	changes := 0
	bus.Subscribe(b, func(PhaseChanged) { changes++ })

	m.ApplyDelta(75, "ramp") // idle -> building
	m.Step(0.02)             // building -> critical
	if m.Phase() != PhaseCritical {
		t.Fatalf("phase %v, want critical", m.Phase())
	}
	base := changes

	for i := 0; i < 50; i++ {
		m.ApplyDelta(-1, "wobble") // 74
		m.ApplyDelta(+1, "wobble") // 75
		m.Step(0.02)
	}
	if changes != base {
		t.Fatalf("phase flapped %d times while oscillating at the threshold", changes-base)
	}

	m.ApplyDelta(-16, "real drop") // 59 < 0.8*75
	if m.Phase() != PhaseBuilding {
		t.Fatalf("phase %v, want building after dropping below 0.8*critical", m.Phase())
	}
	if changes != base+1 {
		t.Fatalf("got %d changes for one monotonic crossing", changes-base)
	}
}

func TestPhases_CollapseAndRecovery(t *testing.T) {
	m, _ := newTestMachine(t, Config{BaseRate: 0, CriticalThreshold: 75, CollapseThreshold: 95})

	m.ApplyDelta(96, "coup") // idle -> building
	m.Step(0.02)             // building -> critical
	m.Step(0.02)             // critical -> collapse
	if m.Phase() != PhaseCollapse {
		t.Fatalf("phase %v, want collapse", m.Phase())
	}

	// Collapse holds until level drops under 0.3 * critical.
	m.ApplyDelta(-70, "cleanup") // 26
	if m.Phase() != PhaseCollapse {
		t.Fatalf("phase %v, want collapse to hold at 26", m.Phase())
	}
	m.ApplyDelta(-4, "cleanup") // 22 < 22.5
	if m.Phase() != PhaseRecovered {
		t.Fatalf("phase %v, want recovered", m.Phase())
	}

	// Recovered -> Building on a fresh flare-up past 0.5 * critical.
	m.ApplyDelta(17, "flare") // 39 > 37.5
	if m.Phase() != PhaseBuilding {
		t.Fatalf("phase %v, want building", m.Phase())
	}
}

func TestStep_EscalationCurveDefaultsToIdentityFactor(t *testing.T) {
	m, _ := newTestMachine(t, Config{BaseRate: 10})
	m.Step(0.5)
	if m.Level() != 5 {
		t.Fatalf("level %v, want 5 with nil curve", m.Level())
	}

	curved, _ := newTestMachine(t, Config{
		BaseRate:        10,
		EscalationCurve: func(n float64) float64 { return 2 },
	})
	curved.Step(0.5)
	if curved.Level() != 10 {
		t.Fatalf("level %v, want 10 with a x2 curve", curved.Level())
	}
}

func TestTriggerEvent_Validation(t *testing.T) {
	m, b := newTestMachine(t, Config{})

	triggered := 0
	bus.Subscribe(b, func(Triggered) { triggered++ })

	if _, ok := m.TriggerEvent("", 1, 5); ok {
		t.Fatalf("empty kind accepted")
	}
	if _, ok := m.TriggerEvent("riot", 0, 5); ok {
		t.Fatalf("zero severity accepted")
	}
	id, ok := m.TriggerEvent("riot", 2.5, 5)
	if !ok || id == "" {
		t.Fatalf("valid event rejected")
	}
	if triggered != 1 {
		t.Fatalf("Triggered fired %d times, want 1", triggered)
	}

	id2, _ := m.TriggerEvent("strike", 1, 5)
	if id2 == id {
		t.Fatalf("event ids not unique: %q", id)
	}
}

func TestStep_EventAgingAndRemoval(t *testing.T) {
	m, _ := newTestMachine(t, Config{BaseRate: 0})

	m.TriggerEvent("riot", 3, 0.05)
	m.TriggerEvent("strike", 1, 1)

	m.Step(0.02)
	if got := len(m.ActiveEvents()); got != 2 {
		t.Fatalf("%d active events, want 2", got)
	}

	m.Step(0.04) // riot expires
	evs := m.ActiveEvents()
	if len(evs) != 1 || evs[0].Kind != "strike" {
		t.Fatalf("active events after expiry: %+v", evs)
	}
}

func TestSuppressEvent(t *testing.T) {
	m, _ := newTestMachine(t, Config{BaseRate: 0})

	if m.SuppressEvent("E404", 1) {
		t.Fatalf("suppress on unknown id succeeded")
	}

	id, _ := m.TriggerEvent("riot", 3, 10)
	if !m.SuppressEvent(id, -1.5) { // strength is magnitude; sign ignored
		t.Fatalf("suppress failed")
	}
	evs := m.ActiveEvents()
	if evs[0].Severity != 1.5 || evs[0].Resolved {
		t.Fatalf("event after suppress: %+v", evs[0])
	}

	// Severity already at the resolve epsilon boundary: a tiny
	// suppression floors it and resolves the event.
	weak, _ := m.TriggerEvent("leak", 0.005, 10)
	if !m.SuppressEvent(weak, 0.01) {
		t.Fatalf("suppress failed")
	}
	m.Step(0.02)
	for _, e := range m.ActiveEvents() {
		if e.ID == weak {
			t.Fatalf("epsilon-severity event not resolved: %+v", e)
		}
	}
}

func TestApplyDelta_ClampsAndFiltersNoise(t *testing.T) {
	m, b := newTestMachine(t, Config{BaseRate: 0})

	levelEvents := 0
	bus.Subscribe(b, func(LevelChanged) { levelEvents++ })

	m.ApplyDelta(150, "overshoot")
	if m.Level() != 100 {
		t.Fatalf("level %v, want clamp to 100", m.Level())
	}
	m.ApplyDelta(-250, "undershoot")
	if m.Level() != 0 {
		t.Fatalf("level %v, want clamp to 0", m.Level())
	}
	base := levelEvents

	m.ApplyDelta(1e-6, "noise")
	if levelEvents != base {
		t.Fatalf("sub-epsilon change notified observers")
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	m, _ := newTestMachine(t, Config{BaseRate: 0})
	m.ApplyDelta(40, "setup")
	m.TriggerEvent("riot", 2, 8)

	level, phase, evs, next := m.Level(), m.Phase(), m.ActiveEvents(), m.NextEventNum()

	m2, _ := newTestMachine(t, Config{BaseRate: 0})
	m2.Restore(level, phase, evs, next)

	if m2.Level() != level || m2.Phase() != phase {
		t.Fatalf("restored level/phase %v/%v, want %v/%v", m2.Level(), m2.Phase(), level, phase)
	}
	if len(m2.ActiveEvents()) != 1 {
		t.Fatalf("restored events: %+v", m2.ActiveEvents())
	}
	if id, _ := m2.TriggerEvent("next", 1, 1); id != "E2" {
		t.Fatalf("event counter not restored: new id %q", id)
	}
}
