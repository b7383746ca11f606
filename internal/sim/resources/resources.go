// Package resources owns the four bounded gauges the administration
// lives and dies by. Values are always clamped into [MinValue,
// MaxValue]; trend is derived from the last applied change and never
// authoritative.
package resources

import (
	"sort"
	"strings"

	"execdisorder/internal/sim/bus"
)

type Kind string

const (
	Popularity     Kind = "popularity"
	Stability      Kind = "stability"
	MediaTrust     Kind = "media_trust"
	EconomicHealth Kind = "economic_health"
)

// Kinds lists all resource kinds in canonical order. Iteration over
// resource maps goes through this list so results are deterministic.
var Kinds = []Kind{Popularity, Stability, MediaTrust, EconomicHealth}

// ParseKind resolves a content-data spelling ("MediaTrust",
// "media_trust", "mediatrust") to a canonical kind.
func ParseKind(s string) (Kind, bool) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
	for _, k := range Kinds {
		if strings.ReplaceAll(string(k), "_", "") == n {
			return k, true
		}
	}
	return "", false
}

type Trend int

const (
	TrendFlat Trend = iota
	TrendRising
	TrendFalling
)

const (
	thresholdCriticalLow  = 20.0
	thresholdCriticalHigh = 80.0
)

// Bus event payloads.
type (
	Changed struct {
		Kind Kind
		Old  float64
		New  float64
	}
	CriticalLow  struct{ Kind Kind }
	CriticalHigh struct{ Kind Kind }
	Depleted     struct{ Kind Kind }
	Maxed        struct{ Kind Kind }
)

type Config struct {
	MinValue float64
	MaxValue float64
	Starting map[Kind]float64
}

func (c *Config) applyDefaults() {
	if c.MaxValue <= c.MinValue {
		c.MinValue = 0
		c.MaxValue = 100
	}
	if c.Starting == nil {
		c.Starting = map[Kind]float64{}
	}
	for _, k := range Kinds {
		if _, ok := c.Starting[k]; !ok {
			c.Starting[k] = 50
		}
	}
}

type Ledger struct {
	cfg    Config
	values map[Kind]float64
	trends map[Kind]Trend
	bus    *bus.Bus
}

func NewLedger(cfg Config, b *bus.Bus) *Ledger {
	cfg.applyDefaults()
	l := &Ledger{
		cfg:    cfg,
		values: make(map[Kind]float64, len(Kinds)),
		trends: make(map[Kind]Trend, len(Kinds)),
		bus:    b,
	}
	l.Reset()
	return l
}

// Reset restores every gauge to its configured starting value.
func (l *Ledger) Reset() {
	for _, k := range Kinds {
		l.values[k] = l.clamp(l.cfg.Starting[k])
		l.trends[k] = TrendFlat
	}
}

// Restore overwrites gauges from a snapshot without publishing change
// or threshold notifications. Kinds absent from the map keep their
// starting value.
func (l *Ledger) Restore(values map[Kind]float64) {
	l.Reset()
	for k, v := range values {
		if _, known := l.values[k]; !known {
			continue
		}
		l.values[k] = l.clamp(v)
	}
}

func (l *Ledger) clamp(v float64) float64 {
	if v < l.cfg.MinValue {
		return l.cfg.MinValue
	}
	if v > l.cfg.MaxValue {
		return l.cfg.MaxValue
	}
	return v
}

func (l *Ledger) Get(k Kind) float64 { return l.values[k] }

func (l *Ledger) Trend(k Kind) Trend { return l.trends[k] }

// All returns a copy of the current values.
func (l *Ledger) All() map[Kind]float64 {
	out := make(map[Kind]float64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

// Modify applies delta to one gauge and returns the actual change
// after clamping. Threshold crossings each fire at most once per
// crossing direction.
func (l *Ledger) Modify(k Kind, delta float64) float64 {
	old, ok := l.values[k]
	if !ok {
		return 0
	}
	now := l.clamp(old + delta)
	if now == old {
		return 0
	}
	l.values[k] = now
	switch {
	case now > old:
		l.trends[k] = TrendRising
	case now < old:
		l.trends[k] = TrendFalling
	}

	if l.bus != nil {
		bus.Publish(l.bus, Changed{Kind: k, Old: old, New: now})
		l.checkThresholds(k, old, now)
	}
	return now - old
}

func (l *Ledger) checkThresholds(k Kind, old, now float64) {
	if now <= thresholdCriticalLow && old > thresholdCriticalLow {
		bus.Publish(l.bus, CriticalLow{Kind: k})
	}
	if now >= thresholdCriticalHigh && old < thresholdCriticalHigh {
		bus.Publish(l.bus, CriticalHigh{Kind: k})
	}
	if now <= l.cfg.MinValue && old > l.cfg.MinValue {
		bus.Publish(l.bus, Depleted{Kind: k})
	}
	if now >= l.cfg.MaxValue && old < l.cfg.MaxValue {
		bus.Publish(l.bus, Maxed{Kind: k})
	}
}

// ModifyMany applies each delta independently, in canonical kind
// order. There is no all-or-nothing semantics; these are independent
// gauges, not a transaction.
func (l *Ledger) ModifyMany(deltas map[Kind]float64) {
	for _, k := range sortedKinds(deltas) {
		l.Modify(k, deltas[k])
	}
}

// Set forces a gauge to a value (snapshot load, debug). Threshold
// events still fire if a boundary is crossed.
func (l *Ledger) Set(k Kind, v float64) {
	if old, ok := l.values[k]; ok {
		l.Modify(k, l.clamp(v)-old)
	}
}

// ProcessCascadingEffects applies the fixed cross-resource rules, in
// this order, each rule reading the possibly-already-modified current
// values:
//
//  1. Popularity < 30     -> Stability  -0.5
//  2. EconomicHealth < 30 -> Popularity -0.3
//  3. MediaTrust < 20     -> Popularity -0.2
//
// Called once per day boundary, not per tick.
func (l *Ledger) ProcessCascadingEffects() {
	if l.values[Popularity] < 30 {
		l.Modify(Stability, -0.5)
	}
	if l.values[EconomicHealth] < 30 {
		l.Modify(Popularity, -0.3)
	}
	if l.values[MediaTrust] < 20 {
		l.Modify(Popularity, -0.2)
	}
}

// Health maps a gauge to [0,1]: 1.0 perfectly balanced at the
// midpoint, 0.0 at either extreme.
func (l *Ledger) Health(k Kind) float64 {
	mid := (l.cfg.MinValue + l.cfg.MaxValue) / 2
	half := (l.cfg.MaxValue - l.cfg.MinValue) / 2
	d := l.values[k] - mid
	if d < 0 {
		d = -d
	}
	return 1 - d/half
}

// OverallHealth is the mean health over all kinds.
func (l *Ledger) OverallHealth() float64 {
	var total float64
	for _, k := range Kinds {
		total += l.Health(k)
	}
	return total / float64(len(Kinds))
}

func (l *Ledger) IsCritical(k Kind) bool { return l.values[k] <= thresholdCriticalLow }
func (l *Ledger) IsDepleted(k Kind) bool { return l.values[k] <= l.cfg.MinValue }

func sortedKinds(m map[Kind]float64) []Kind {
	out := make([]Kind, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
