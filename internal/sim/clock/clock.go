// Package clock converts variable wall-clock frame time into a fixed
// tick sequence. The host calls Advance with whatever frame delta it
// measured; the clock hands back zero or more fixed-size steps.
package clock

const (
	// DefaultStep is 50 Hz, matching the simulation tick rate.
	DefaultStep = 0.02

	// DefaultMaxFrameDelta caps a single Advance call so one long frame
	// cannot produce an unbounded catch-up burst.
	DefaultMaxFrameDelta = 0.1

	DefaultMaxTimeScale = 4.0
)

type Clock struct {
	step          float64
	maxFrameDelta float64
	maxTimeScale  float64
	timeScale     float64
	accum         float64
	elapsed       float64
	paused        bool
}

func New(step, maxFrameDelta, maxTimeScale float64) *Clock {
	if step <= 0 {
		step = DefaultStep
	}
	if maxFrameDelta < step {
		maxFrameDelta = DefaultMaxFrameDelta
	}
	if maxTimeScale <= 0 {
		maxTimeScale = DefaultMaxTimeScale
	}
	return &Clock{
		step:          step,
		maxFrameDelta: maxFrameDelta,
		maxTimeScale:  maxTimeScale,
		timeScale:     1,
	}
}

// Advance accumulates rawDelta seconds (scaled, clamped) and returns
// one entry per fixed step that elapsed, each carrying the exact step
// size. While paused the delta is forced to zero but the accumulator
// is preserved, so sub-step time is not lost across a pause.
func (c *Clock) Advance(rawDelta float64) []float64 {
	if rawDelta < 0 {
		rawDelta = 0
	}
	dt := rawDelta * c.timeScale
	if dt > c.maxFrameDelta {
		dt = c.maxFrameDelta
	}
	if c.paused {
		dt = 0
	}
	c.accum += dt

	var steps []float64
	for c.accum >= c.step {
		c.accum -= c.step
		c.elapsed += c.step
		steps = append(steps, c.step)
	}
	return steps
}

// SetTimeScale clamps s into [0, maxTimeScale]. Inputs are never
// rejected.
func (c *Clock) SetTimeScale(s float64) {
	if s < 0 {
		s = 0
	}
	if s > c.maxTimeScale {
		s = c.maxTimeScale
	}
	c.timeScale = s
}

func (c *Clock) TimeScale() float64 { return c.timeScale }

func (c *Clock) Pause()         { c.paused = true }
func (c *Clock) Resume()        { c.paused = false }
func (c *Clock) Paused() bool   { return c.paused }
func (c *Clock) Step() float64  { return c.step }
func (c *Clock) Elapsed() float64 { return c.elapsed }

// Accumulator reports the sub-step remainder; paired with
// SetAccumulator it lets a snapshot restore mid-step time.
func (c *Clock) Accumulator() float64     { return c.accum }
func (c *Clock) SetAccumulator(v float64) {
	if v < 0 {
		v = 0
	}
	c.accum = v
}

// Restore rebuilds full clock state from a snapshot.
func (c *Clock) Restore(elapsed, accum, timeScale float64, paused bool) {
	if elapsed < 0 {
		elapsed = 0
	}
	c.elapsed = elapsed
	c.SetAccumulator(accum)
	c.SetTimeScale(timeScale)
	c.paused = paused
}
