// Package disorder owns the scalar disorder level, the set of timed
// active events feeding it, and the hysteretic crisis phase derived
// from it.
package disorder

import (
	"fmt"

	"execdisorder/internal/sim/bus"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBuilding
	PhaseCritical
	PhaseCollapse
	PhaseRecovered
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBuilding:
		return "building"
	case PhaseCritical:
		return "critical"
	case PhaseCollapse:
		return "collapse"
	case PhaseRecovered:
		return "recovered"
	}
	return "unknown"
}

// ParsePhase inverts String for snapshot loads.
func ParsePhase(s string) (Phase, bool) {
	for p := PhaseIdle; p <= PhaseRecovered; p++ {
		if p.String() == s {
			return p, true
		}
	}
	return PhaseIdle, false
}

// Event is a timed, severity-bearing contribution to disorder.
// Identity is the id token, not a slice index: events are removed
// mid-iteration once resolved.
type Event struct {
	ID        string
	Kind      string
	Severity  float64
	Remaining float64
	Resolved  bool
}

// Curve maps the normalized disorder level (level/collapseThreshold)
// to an escalation factor. A nil curve means a factor of 1.
type Curve func(normalized float64) float64

type Config struct {
	BaseRate          float64 // level units per second
	CriticalThreshold float64
	CollapseThreshold float64
	EscalationCurve   Curve
}

func (c *Config) applyDefaults() {
	if c.BaseRate == 0 {
		c.BaseRate = 1
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = 75
	}
	if c.CollapseThreshold <= 0 {
		c.CollapseThreshold = 95
	}
}

// Severity at or below this resolves a suppressed event outright.
const resolveEpsilon = 0.01

// Level moves smaller than this do not notify observers; they are
// floating-point noise, not news.
const levelEpsilon = 1e-3

// Bus event payloads.
type (
	PhaseChanged struct{ Phase Phase }
	Triggered    struct{ Event Event }
	LevelChanged struct {
		Old    float64
		New    float64
		Reason string
	}
)

type Machine struct {
	cfg    Config
	level  float64
	phase  Phase
	events []*Event
	bus    *bus.Bus

	nextEventNum uint64
}

func NewMachine(cfg Config, b *bus.Bus) *Machine {
	cfg.applyDefaults()
	return &Machine{cfg: cfg, bus: b}
}

func (m *Machine) Level() float64 { return m.level }
func (m *Machine) Phase() Phase   { return m.phase }

// Normalized reports the level relative to the collapse threshold,
// clamped into [0,1].
func (m *Machine) Normalized() float64 {
	n := m.level / m.cfg.CollapseThreshold
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// ActiveEvents returns a copy of the active set in insertion order.
func (m *Machine) ActiveEvents() []Event {
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out
}

// Step advances one fixed tick: escalate the level along the curve,
// age active events, drop resolved ones, then re-evaluate the phase.
func (m *Machine) Step(dt float64) {
	factor := 1.0
	if m.cfg.EscalationCurve != nil {
		factor = m.cfg.EscalationCurve(m.Normalized())
	}
	m.setLevel(m.level+m.cfg.BaseRate*factor*dt, "escalation")

	if len(m.events) > 0 {
		kept := m.events[:0]
		for _, e := range m.events {
			if e.Resolved {
				continue
			}
			e.Remaining -= dt
			if e.Remaining <= 0 {
				e.Resolved = true
				continue
			}
			kept = append(kept, e)
		}
		m.events = kept
	}

	m.evaluatePhase()
}

// ApplyDelta adjusts the level directly. The reason is diagnostic
// only; it never affects behavior.
func (m *Machine) ApplyDelta(amount float64, reason string) {
	m.setLevel(m.level+amount, reason)
	m.evaluatePhase()
}

func (m *Machine) setLevel(v float64, reason string) {
	old := m.level
	m.level = clamp01to100(v)
	d := m.level - old
	if d < 0 {
		d = -d
	}
	if d > levelEpsilon && m.bus != nil {
		bus.Publish(m.bus, LevelChanged{Old: old, New: m.level, Reason: reason})
	}
}

// TriggerEvent creates a new active event and returns its id. It
// rejects empty kinds and non-positive severities.
func (m *Machine) TriggerEvent(kind string, severity, duration float64) (string, bool) {
	if kind == "" || severity <= 0 {
		return "", false
	}
	m.nextEventNum++
	e := &Event{
		ID:        fmt.Sprintf("E%d", m.nextEventNum),
		Kind:      kind,
		Severity:  severity,
		Remaining: duration,
	}
	m.events = append(m.events, e)
	if m.bus != nil {
		bus.Publish(m.bus, Triggered{Event: *e})
	}
	return e.ID, true
}

// SuppressEvent reduces an active event's severity by |strength|,
// floored at zero; near-zero severity resolves the event. Returns
// false if no event with that id is active.
func (m *Machine) SuppressEvent(id string, strength float64) bool {
	if strength < 0 {
		strength = -strength
	}
	for _, e := range m.events {
		if e.ID != id || e.Resolved {
			continue
		}
		e.Severity -= strength
		if e.Severity < 0 {
			e.Severity = 0
		}
		if e.Severity <= resolveEpsilon {
			e.Resolved = true
		}
		return true
	}
	return false
}

func (m *Machine) evaluatePhase() {
	prev := m.phase
	lvl := m.level
	crit := m.cfg.CriticalThreshold
	collapse := m.cfg.CollapseThreshold

	// Hysteretic by construction: up and down transitions use
	// different thresholds so the phase cannot flap at a boundary.
	switch m.phase {
	case PhaseIdle:
		if lvl > 0.1 {
			m.phase = PhaseBuilding
		}
	case PhaseBuilding:
		if lvl >= crit {
			m.phase = PhaseCritical
		} else if lvl <= 0.05 {
			m.phase = PhaseIdle
		}
	case PhaseCritical:
		if lvl >= collapse {
			m.phase = PhaseCollapse
		} else if lvl < crit*0.8 {
			m.phase = PhaseBuilding
		}
	case PhaseCollapse:
		if lvl < crit*0.3 {
			m.phase = PhaseRecovered
		}
	case PhaseRecovered:
		if lvl <= 0.05 {
			m.phase = PhaseIdle
		} else if lvl > crit*0.5 {
			m.phase = PhaseBuilding
		}
	}

	if prev != m.phase && m.bus != nil {
		bus.Publish(m.bus, PhaseChanged{Phase: m.phase})
	}
}

// Restore overwrites the machine's state from a snapshot. The phase is
// taken as-is; hysteresis depends on the previous phase, so deriving
// it from the level alone would be wrong.
func (m *Machine) Restore(level float64, phase Phase, events []Event, nextEventNum uint64) {
	m.level = clamp01to100(level)
	m.phase = phase
	m.events = m.events[:0]
	for _, e := range events {
		cp := e
		m.events = append(m.events, &cp)
	}
	m.nextEventNum = nextEventNum
}

func (m *Machine) NextEventNum() uint64 { return m.nextEventNum }

func clamp01to100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
