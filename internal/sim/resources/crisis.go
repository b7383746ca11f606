package resources

// CrisisLevel is derived from the worst gauge values; it gates
// win/loss checks and is never stored.
type CrisisLevel int

const (
	CrisisNormal CrisisLevel = iota
	CrisisWarning
	CrisisSevere
	CrisisCritical
	CrisisGameOver
)

func (c CrisisLevel) String() string {
	switch c {
	case CrisisNormal:
		return "normal"
	case CrisisWarning:
		return "warning"
	case CrisisSevere:
		return "severe"
	case CrisisCritical:
		return "critical"
	case CrisisGameOver:
		return "game_over"
	}
	return "unknown"
}

// CrisisLevel counts critical and depleted gauges: any depleted gauge
// ends the game; three critical gauges is a full crisis, two severe,
// one a warning.
func (l *Ledger) CrisisLevel() CrisisLevel {
	critical, depleted := 0, 0
	for _, k := range Kinds {
		if l.IsDepleted(k) {
			depleted++
		}
		if l.IsCritical(k) {
			critical++
		}
	}
	switch {
	case depleted > 0:
		return CrisisGameOver
	case critical >= 3:
		return CrisisCritical
	case critical >= 2:
		return CrisisSevere
	case critical >= 1:
		return CrisisWarning
	}
	return CrisisNormal
}

// InCrisis reports whether any gauge is at a critical extreme.
func (l *Ledger) InCrisis() bool {
	for _, k := range Kinds {
		if l.values[k] <= thresholdCriticalLow || l.values[k] >= thresholdCriticalHigh {
			return true
		}
	}
	return false
}
