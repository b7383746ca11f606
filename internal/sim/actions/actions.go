// Package actions is the admission-control front door for executive
// actions: a token bucket (rate), an action-point pool (scarcity), and
// a bounded FIFO (backpressure). All three must pass before an action
// is accepted, and exactly one queued action executes per tick.
package actions

import (
	"fmt"

	"execdisorder/internal/sim/bus"
)

type Action struct {
	ID     string
	Cost   float64
	Effect float64 // magnitude applied against the disorder level

	// OnComplete runs after execution, if present.
	OnComplete func()
}

// DisorderController is the capability the economy needs from the
// disorder machine. Absent (nil) is a valid, cheap no-op state, not an
// error.
type DisorderController interface {
	ApplyDelta(amount float64, reason string)
}

type Config struct {
	MaxPoints  float64
	RegenRate  float64 // points per second
	QueueCap   int
	BucketCap  float64
	RefillRate float64 // tokens per second
}

func (c *Config) applyDefaults() {
	if c.MaxPoints <= 0 {
		c.MaxPoints = 100
	}
	if c.RegenRate <= 0 {
		c.RegenRate = 5
	}
	if c.QueueCap <= 0 {
		c.QueueCap = 10
	}
	if c.BucketCap <= 0 {
		c.BucketCap = 10
	}
	if c.RefillRate <= 0 {
		c.RefillRate = 10
	}
}

// Bus event payloads.
type (
	Executed      struct{ Action Action }
	PointsChanged struct{ Fraction float64 } // points / max
)

type Economy struct {
	cfg      Config
	points   float64
	tokens   float64
	queue    []Action
	disorder DisorderController
	bus      *bus.Bus

	executed uint64
	rejected uint64
}

func NewEconomy(cfg Config, dc DisorderController, b *bus.Bus) *Economy {
	cfg.applyDefaults()
	return &Economy{
		cfg:      cfg,
		points:   cfg.MaxPoints,
		tokens:   cfg.BucketCap,
		disorder: dc,
		bus:      b,
	}
}

func (e *Economy) Points() float64 { return e.points }
func (e *Economy) Tokens() float64 { return e.tokens }
func (e *Economy) QueueLen() int   { return len(e.queue) }

// QueuedIDs returns the pending action ids, head first.
func (e *Economy) QueuedIDs() []string {
	out := make([]string, len(e.queue))
	for i, a := range e.queue {
		out[i] = a.ID
	}
	return out
}

// Queued returns a copy of the pending queue, head first, with
// completion callbacks stripped.
func (e *Economy) Queued() []Action {
	out := make([]Action, len(e.queue))
	for i, a := range e.queue {
		a.OnComplete = nil
		out[i] = a
	}
	return out
}

// Counters since construction; diagnostic only.
func (e *Economy) ExecutedCount() uint64 { return e.executed }
func (e *Economy) RejectedCount() uint64 { return e.rejected }

// Step refills the token bucket, regenerates action points, and
// drains at most one queued action. The one-per-tick drain is the
// natural pacing: however many actions were admitted this tick, their
// effects land one tick at a time.
func (e *Economy) Step(dt float64) {
	e.tokens += e.cfg.RefillRate * dt
	if e.tokens > e.cfg.BucketCap {
		e.tokens = e.cfg.BucketCap
	}

	if e.points < e.cfg.MaxPoints {
		e.points += e.cfg.RegenRate * dt
		if e.points > e.cfg.MaxPoints {
			e.points = e.cfg.MaxPoints
		}
		e.notifyPoints()
	}

	if len(e.queue) > 0 {
		head := e.queue[0]
		e.queue = e.queue[1:]
		e.execute(head)
	}
}

// TryEnqueue admits an action if its id is non-empty, the queue has
// room, the points cover its cost, and a whole token is available.
// Rejection leaves all state untouched.
func (e *Economy) TryEnqueue(a Action) bool {
	if a.ID == "" || len(e.queue) >= e.cfg.QueueCap || e.points < a.Cost || e.tokens < 1 {
		e.rejected++
		return false
	}
	e.tokens -= 1
	e.points -= a.Cost
	e.queue = append(e.queue, a)
	e.notifyPoints()
	return true
}

func (e *Economy) execute(a Action) {
	if e.disorder != nil {
		effect := a.Effect
		if effect < 0 {
			effect = -effect
		}
		e.disorder.ApplyDelta(-effect, fmt.Sprintf("action:%s", a.ID))
	}
	if a.OnComplete != nil {
		a.OnComplete()
	}
	e.executed++
	if e.bus != nil {
		bus.Publish(e.bus, Executed{Action: a})
	}
}

func (e *Economy) notifyPoints() {
	if e.bus != nil {
		bus.Publish(e.bus, PointsChanged{Fraction: e.points / e.cfg.MaxPoints})
	}
}

// Restore overwrites points, tokens and the pending queue from a
// snapshot. Queued actions restored by id lose their completion
// callbacks; those belong to the session that enqueued them.
func (e *Economy) Restore(points, tokens float64, queue []Action) {
	e.points = clampF(points, 0, e.cfg.MaxPoints)
	e.tokens = clampF(tokens, 0, e.cfg.BucketCap)
	e.queue = append(e.queue[:0], queue...)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
