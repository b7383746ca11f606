// Package tuning loads the numeric knobs of the simulation from a
// YAML file. Code never hardcodes a gameplay number that a designer
// would want to turn; it reads it from here.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// FixedStepSec is the simulation step. All tick logic advances in
	// multiples of this regardless of how raw time arrives.
	FixedStepSec  float64 `yaml:"fixed_step_sec"`
	MaxFrameDelta float64 `yaml:"max_frame_delta_sec"`
	MaxTimeScale  float64 `yaml:"max_time_scale"`

	// DayTicks is how many fixed steps make one in-game day.
	DayTicks int `yaml:"day_ticks"`

	RandomEventChance float64 `yaml:"random_event_chance"`

	Disorder  Disorder  `yaml:"disorder"`
	Actions   Actions   `yaml:"actions"`
	Resources Resources `yaml:"resources"`
	Phases    Phases    `yaml:"phases"`
}

type Disorder struct {
	BaseRate          float64 `yaml:"base_rate"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
	CollapseThreshold float64 `yaml:"collapse_threshold"`
}

type Actions struct {
	MaxPoints  float64 `yaml:"max_points"`
	RegenRate  float64 `yaml:"regen_rate"`
	QueueCap   int     `yaml:"queue_cap"`
	BucketCap  float64 `yaml:"bucket_cap"`
	RefillRate float64 `yaml:"refill_rate"`
}

type Resources struct {
	Starting map[string]float64 `yaml:"starting"`
}

// Phases maps session days to narrative phases. Each value is the last
// day of that phase; anything past Late is the endgame.
type Phases struct {
	IntroductionEndDay int `yaml:"introduction_end_day"`
	EarlyEndDay        int `yaml:"early_end_day"`
	MidEndDay          int `yaml:"mid_end_day"`
	LateEndDay         int `yaml:"late_end_day"`
}

// Default is the shipped configuration; Load falls back to these for
// any field the file leaves zero.
func Default() Tuning {
	return Tuning{
		FixedStepSec:      0.02,
		MaxFrameDelta:     0.1,
		MaxTimeScale:      4,
		DayTicks:          1500,
		RandomEventChance: 0.2,
		Disorder: Disorder{
			BaseRate:          1,
			CriticalThreshold: 75,
			CollapseThreshold: 95,
		},
		Actions: Actions{
			MaxPoints:  100,
			RegenRate:  5,
			QueueCap:   10,
			BucketCap:  10,
			RefillRate: 10,
		},
		Phases: Phases{
			IntroductionEndDay: 3,
			EarlyEndDay:        10,
			MidEndDay:          30,
			LateEndDay:         60,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.FixedStepSec <= 0 {
		return fmt.Errorf("fixed_step_sec must be positive, got %v", t.FixedStepSec)
	}
	if t.MaxFrameDelta < t.FixedStepSec {
		return fmt.Errorf("max_frame_delta_sec %v below fixed_step_sec %v",
			t.MaxFrameDelta, t.FixedStepSec)
	}
	if t.DayTicks <= 0 {
		return fmt.Errorf("day_ticks must be positive, got %d", t.DayTicks)
	}
	if t.RandomEventChance < 0 || t.RandomEventChance > 1 {
		return fmt.Errorf("random_event_chance %v outside [0,1]", t.RandomEventChance)
	}
	if t.Disorder.CollapseThreshold <= t.Disorder.CriticalThreshold {
		return fmt.Errorf("collapse threshold %v must exceed critical %v",
			t.Disorder.CollapseThreshold, t.Disorder.CriticalThreshold)
	}
	p := t.Phases
	if !(p.IntroductionEndDay < p.EarlyEndDay &&
		p.EarlyEndDay < p.MidEndDay && p.MidEndDay < p.LateEndDay) {
		return fmt.Errorf("phase day boundaries must be strictly increasing")
	}
	return nil
}
