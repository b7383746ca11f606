// Package session wires the simulation components together and drives
// them in a fixed order: clock, action economy, disorder, then the day
// boundary work. It is the only package that knows about all of them,
// and the only place game-over and endings are decided.
package session

import (
	"log"
	"math/rand"
	"strings"

	"execdisorder/internal/persistence/snapshot"
	"execdisorder/internal/sim/actions"
	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/characters"
	"execdisorder/internal/sim/clock"
	"execdisorder/internal/sim/consequence"
	"execdisorder/internal/sim/deck"
	"execdisorder/internal/sim/disorder"
	"execdisorder/internal/sim/resources"
	"execdisorder/internal/sim/tuning"
)

type GamePhase int

const (
	PhaseIntroduction GamePhase = iota
	PhaseEarly
	PhaseMid
	PhaseLate
	PhaseEndgame
	PhaseGameOver
)

func (p GamePhase) String() string {
	switch p {
	case PhaseIntroduction:
		return "introduction"
	case PhaseEarly:
		return "early"
	case PhaseMid:
		return "mid"
	case PhaseLate:
		return "late"
	case PhaseEndgame:
		return "endgame"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

type Ending string

const (
	EndingDemocraticVictory  Ending = "democratic_victory"
	EndingAutocraticEmpire   Ending = "autocratic_empire"
	EndingEconomicCollapse   Ending = "economic_collapse"
	EndingNuclearWinter      Ending = "nuclear_winter"
	EndingAlienOverlords     Ending = "alien_overlords"
	EndingImpeachment        Ending = "impeachment"
	EndingTimeLoopParadox    Ending = "time_loop_paradox"
	EndingPeacefulTransition Ending = "peaceful_transition"
	EndingMediocrePresident  Ending = "mediocre_president"
)

// Bus event payloads.
type (
	DayChanged       struct{ Day int }
	GamePhaseChanged struct{ Old, New GamePhase }
	// RandomEventOccurred fires when the day-boundary roll lands on a
	// content event.
	RandomEventOccurred struct {
		EventID string
		Name    string
	}
	SessionEnded struct {
		Ending Ending
		Stats  Stats
	}
)

type Stats struct {
	DaysInOffice   int
	TotalDecisions int
	ChaosGenerated float64
	FinalPopularity float64
	FinalStability  float64
	OverallScore    int
}

// Decision is one resolved card, kept in a bounded history ring.
type Decision struct {
	Day         int
	CardID      string
	OptionIndex int
}

const historyCap = 64

// Chaos accrual per resolved card category and per disorder severity
// point. The time-loop ending triggers at chaosTimeLoop.
const (
	chaosCrisis   = 10
	chaosScandal  = 5
	chaosAbsurd   = 15
	chaosTimeLoop = 1000
)

// Disorder shape of a content "event:" directive.
const (
	directiveEventSeverity = 10.0
	directiveEventDuration = 30.0
)

type Config struct {
	Tuning    tuning.Tuning
	Seed      int64
	SessionID string
}

type Session struct {
	cfg Config
	bus *bus.Bus
	rng *rand.Rand

	catalogs *catalogs.Catalogs
	clock    *clock.Clock
	ledger   *resources.Ledger
	machine  *disorder.Machine
	economy  *actions.Economy
	roster   *characters.Roster
	resolver *consequence.Resolver
	deck     *deck.Deck

	day     int
	dayTick int
	phase   GamePhase

	decisions      int
	history        []Decision
	headlines      []string
	chaos          float64
	randomEvents   int

	over   bool
	ending Ending
}

// New builds a session over loaded catalogs. A zero Tuning falls back
// to the shipped defaults.
func New(cat *catalogs.Catalogs, cfg Config, b *bus.Bus) *Session {
	if cfg.Tuning.DayTicks == 0 {
		cfg.Tuning = tuning.Default()
	}
	t := cfg.Tuning

	s := &Session{
		cfg:      cfg,
		bus:      b,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		catalogs: cat,
		clock:    clock.New(t.FixedStepSec, t.MaxFrameDelta, t.MaxTimeScale),
		day:      1,
		phase:    PhaseIntroduction,
	}

	starting := make(map[resources.Kind]float64, len(t.Resources.Starting))
	for name, v := range t.Resources.Starting {
		k, ok := resources.ParseKind(name)
		if !ok {
			log.Printf("[session] tuning: unknown starting resource %q skipped", name)
			continue
		}
		starting[k] = v
	}
	s.ledger = resources.NewLedger(resources.Config{Starting: starting}, b)

	s.machine = disorder.NewMachine(disorder.Config{
		BaseRate:          t.Disorder.BaseRate,
		CriticalThreshold: t.Disorder.CriticalThreshold,
		CollapseThreshold: t.Disorder.CollapseThreshold,
	}, b)

	s.economy = actions.NewEconomy(actions.Config{
		MaxPoints:  t.Actions.MaxPoints,
		RegenRate:  t.Actions.RegenRate,
		QueueCap:   t.Actions.QueueCap,
		BucketCap:  t.Actions.BucketCap,
		RefillRate: t.Actions.RefillRate,
	}, s.machine, b)

	seeds := make([]characters.Seed, 0, len(cat.Characters.Defs))
	for _, d := range cat.Characters.Defs {
		seeds = append(seeds, characters.Seed{
			ID: d.ID, Name: d.Name, Title: d.Title,
			Archetype: d.Archetype, Loyalty: d.Loyalty,
		})
	}
	s.roster = characters.NewRoster(seeds, b)
	s.resolver = consequence.NewResolver(s.ledger, s.roster, b)
	s.deck = deck.New(&cat.Cards, s.ledger, s.roster, s.resolver, b, s.rng, s.Day)

	bus.Subscribe(b, s.onGameEvent)
	bus.Subscribe(b, s.onHeadline)
	bus.Subscribe(b, s.onCardResolved)
	bus.Subscribe(b, s.onDisorderTriggered)
	return s
}

// onGameEvent turns a content "event:" directive into a timed disorder
// event with a fixed shape. The event name becomes the disorder kind,
// so suppression and logs stay traceable to content.
func (s *Session) onGameEvent(e consequence.GameEvent) {
	s.machine.TriggerEvent(e.Name, directiveEventSeverity, directiveEventDuration)
}

func (s *Session) onHeadline(e consequence.NewsHeadline) {
	s.headlines = append(s.headlines, e.Text)
	if len(s.headlines) > historyCap {
		s.headlines = s.headlines[len(s.headlines)-historyCap:]
	}
}

func (s *Session) onCardResolved(e deck.CardResolved) {
	s.decisions++
	s.history = append(s.history, Decision{Day: s.day, CardID: e.CardID, OptionIndex: e.OptionIndex})
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}
	switch s.catalogs.Cards.ByID[e.CardID].Category {
	case catalogs.CategoryCrisis:
		s.chaos += chaosCrisis
	case catalogs.CategoryScandal:
		s.chaos += chaosScandal
	case catalogs.CategoryAbsurd:
		s.chaos += chaosAbsurd
	}
}

func (s *Session) onDisorderTriggered(e disorder.Triggered) {
	s.chaos += e.Event.Severity
}

// Tick feeds a raw frame delta through the clock and runs one fixed
// step per elapsed tick. After game over it is a no-op.
func (s *Session) Tick(rawDelta float64) {
	if s.over {
		return
	}
	for _, dt := range s.clock.Advance(rawDelta) {
		s.step(dt)
		if s.over {
			return
		}
	}
}

func (s *Session) step(dt float64) {
	s.economy.Step(dt)
	s.machine.Step(dt)

	s.dayTick++
	if s.dayTick >= s.cfg.Tuning.DayTicks {
		s.dayTick = 0
		s.endDay()
	}
}

func (s *Session) endDay() {
	s.rollRandomEvent()
	s.ledger.ProcessCascadingEffects()

	s.day++
	bus.Publish(s.bus, DayChanged{Day: s.day})
	s.checkPhaseTransition()

	if s.ledger.CrisisLevel() == resources.CrisisGameOver {
		s.endGame()
	}
}

// rollRandomEvent draws the day's seeded chance of a content event and,
// on a hit, picks one by weight in catalog order.
func (s *Session) rollRandomEvent() {
	defs := s.catalogs.Events.Defs
	if len(defs) == 0 || s.rng.Float64() >= s.cfg.Tuning.RandomEventChance {
		return
	}
	var total float64
	for i := range defs {
		total += defs[i].Weight
	}
	if total <= 0 {
		return
	}
	r := s.rng.Float64() * total
	for i := range defs {
		r -= defs[i].Weight
		if r >= 0 {
			continue
		}
		ev := &defs[i]
		s.ledger.ModifyMany(ev.Effects)
		s.resolver.Apply(ev.Directives)
		s.randomEvents++
		bus.Publish(s.bus, RandomEventOccurred{EventID: ev.ID, Name: ev.Name})
		return
	}
}

func (s *Session) checkPhaseTransition() {
	next := s.phaseForDay(s.day)
	if next == s.phase {
		return
	}
	old := s.phase
	s.phase = next
	bus.Publish(s.bus, GamePhaseChanged{Old: old, New: next})
}

func (s *Session) phaseForDay(day int) GamePhase {
	p := s.cfg.Tuning.Phases
	switch {
	case day <= p.IntroductionEndDay:
		return PhaseIntroduction
	case day <= p.EarlyEndDay:
		return PhaseEarly
	case day <= p.MidEndDay:
		return PhaseMid
	case day <= p.LateEndDay:
		return PhaseLate
	}
	return PhaseEndgame
}

func (s *Session) endGame() {
	if s.over {
		return
	}
	s.over = true
	s.ending = s.DetermineEnding()
	old := s.phase
	s.phase = PhaseGameOver
	bus.Publish(s.bus, GamePhaseChanged{Old: old, New: PhaseGameOver})
	bus.Publish(s.bus, SessionEnded{Ending: s.ending, Stats: s.GetStats()})
}

// DetermineEnding maps final state to an ending. Special endings win
// over resource-based ones; the played-card check matches on id
// substring so content variants share an ending.
func (s *Session) DetermineEnding() Ending {
	for _, id := range s.deck.PlayedIDs() {
		if strings.Contains(id, "ALIEN_ALLIANCE") {
			return EndingAlienOverlords
		}
	}
	for _, id := range s.deck.PlayedIDs() {
		if strings.Contains(id, "NUCLEAR") {
			return EndingNuclearWinter
		}
	}
	if s.chaos >= chaosTimeLoop {
		return EndingTimeLoopParadox
	}

	popularity := s.ledger.Get(resources.Popularity)
	stability := s.ledger.Get(resources.Stability)
	economic := s.ledger.Get(resources.EconomicHealth)
	overall := s.ledger.OverallHealth()

	switch {
	case stability >= 70 && popularity >= 60:
		return EndingDemocraticVictory
	case stability <= 20:
		return EndingAutocraticEmpire
	case economic <= 10:
		return EndingEconomicCollapse
	case overall >= 0.7:
		return EndingPeacefulTransition
	case overall <= 0.3:
		return EndingImpeachment
	}
	return EndingMediocrePresident
}

func (s *Session) GetStats() Stats {
	return Stats{
		DaysInOffice:    s.day,
		TotalDecisions:  s.decisions,
		ChaosGenerated:  s.chaos,
		FinalPopularity: s.ledger.Get(resources.Popularity),
		FinalStability:  s.ledger.Get(resources.Stability),
		OverallScore:    s.day*100 + int(s.ledger.OverallHealth()*100)*10 + int(s.chaos*0.5),
	}
}

// Inbound surface. Everything below delegates; the session only adds
// the game-over gate.

func (s *Session) TryEnqueueAction(a actions.Action) bool {
	if s.over {
		return false
	}
	return s.economy.TryEnqueue(a)
}

func (s *Session) PresentNextCard() (string, bool) {
	if s.over {
		return "", false
	}
	return s.deck.PresentNextCard()
}

func (s *Session) MakeChoice(optionIndex int) bool {
	if s.over {
		return false
	}
	if !s.deck.MakeChoice(optionIndex) {
		return false
	}
	// A choice can deplete a gauge; surface that immediately rather
	// than waiting for the day boundary.
	if s.ledger.CrisisLevel() == resources.CrisisGameOver {
		s.endGame()
	}
	return true
}

func (s *Session) TriggerEvent(kind string, severity, duration float64) (string, bool) {
	if s.over {
		return "", false
	}
	return s.machine.TriggerEvent(kind, severity, duration)
}

func (s *Session) SuppressEvent(id string, strength float64) bool {
	return s.machine.SuppressEvent(id, strength)
}

func (s *Session) SetTimeScale(v float64) { s.clock.SetTimeScale(v) }
func (s *Session) Pause()                 { s.clock.Pause() }
func (s *Session) Resume()                { s.clock.Resume() }

func (s *Session) Day() int             { return s.day }
func (s *Session) GamePhase() GamePhase { return s.phase }
func (s *Session) Over() bool           { return s.over }
func (s *Session) Ending() Ending       { return s.ending }
func (s *Session) ChaosScore() float64  { return s.chaos }
func (s *Session) RandomEvents() int    { return s.randomEvents }

func (s *Session) Resources() *resources.Ledger { return s.ledger }
func (s *Session) Disorder() *disorder.Machine  { return s.machine }
func (s *Session) Actions() *actions.Economy    { return s.economy }
func (s *Session) Roster() *characters.Roster   { return s.roster }
func (s *Session) Deck() *deck.Deck             { return s.deck }
func (s *Session) Clock() *clock.Clock          { return s.clock }

// History returns the recent decisions, oldest first.
func (s *Session) History() []Decision {
	out := make([]Decision, len(s.history))
	copy(out, s.history)
	return out
}

// Headlines returns the recent news ring, oldest first.
func (s *Session) Headlines() []string {
	out := make([]string, len(s.headlines))
	copy(out, s.headlines)
	return out
}

// SaveSnapshot captures the full resumable state as a flat record.
func (s *Session) SaveSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, SessionID: s.cfg.SessionID, Day: s.day},
		Seed:   s.cfg.Seed,

		ElapsedSec:     s.clock.Elapsed(),
		AccumulatorSec: s.clock.Accumulator(),
		TimeScale:      s.clock.TimeScale(),
		Paused:         s.clock.Paused(),

		Day:          s.day,
		DayTick:      s.dayTick,
		Decisions:    s.decisions,
		ChaosScore:   s.chaos,
		RandomEvents: s.randomEvents,

		Resources: make(map[string]float64, len(resources.Kinds)),

		DisorderLevel: s.machine.Level(),
		DisorderPhase: s.machine.Phase().String(),
		NextEventNum:  s.machine.NextEventNum(),

		ActionPoints: s.economy.Points(),
		ActionTokens: s.economy.Tokens(),

		DrawIDs:    s.deck.DrawIDs(),
		DiscardIDs: s.deck.DiscardIDs(),
		CurrentID:  s.deck.CurrentID(),
		PlayedIDs:  s.deck.PlayedIDs(),

		Loyalties:          s.roster.Loyalties(),
		InactiveCharacters: s.roster.Inactive(),

		CardsDigest:      s.catalogs.Cards.Digest,
		CharactersDigest: s.catalogs.Characters.Digest,
		EventsDigest:     s.catalogs.Events.Digest,
	}
	for _, k := range resources.Kinds {
		snap.Resources[string(k)] = s.ledger.Get(k)
	}
	for _, ev := range s.machine.ActiveEvents() {
		snap.DisorderEvents = append(snap.DisorderEvents, snapshot.DisorderEventV1{
			ID: ev.ID, Kind: ev.Kind, Severity: ev.Severity,
			Remaining: ev.Remaining, Resolved: ev.Resolved,
		})
	}
	for _, a := range s.economy.Queued() {
		snap.QueuedActions = append(snap.QueuedActions, snapshot.QueuedActionV1{
			ID: a.ID, Cost: a.Cost, Effect: a.Effect,
		})
	}
	return snap
}

// LoadSnapshot rebuilds every component from the record. Digest
// mismatches and unknown ids degrade to log lines; the session resumes
// with what the current content can express.
func (s *Session) LoadSnapshot(snap snapshot.SnapshotV1) error {
	if snap.CardsDigest != "" && snap.CardsDigest != s.catalogs.Cards.Digest {
		log.Printf("[session] save was made against cards digest %s, running %s",
			snap.CardsDigest, s.catalogs.Cards.Digest)
	}

	s.clock.Restore(snap.ElapsedSec, snap.AccumulatorSec, snap.TimeScale, snap.Paused)

	s.day = snap.Day
	if s.day < 1 {
		s.day = 1
	}
	s.dayTick = snap.DayTick
	s.decisions = snap.Decisions
	s.chaos = snap.ChaosScore
	s.randomEvents = snap.RandomEvents
	s.history = nil
	s.headlines = nil
	s.over = false
	s.ending = ""
	s.phase = s.phaseForDay(s.day)

	values := make(map[resources.Kind]float64, len(snap.Resources))
	for name, v := range snap.Resources {
		k, ok := resources.ParseKind(name)
		if !ok {
			log.Printf("[session] snapshot: unknown resource %q skipped", name)
			continue
		}
		values[k] = v
	}
	s.ledger.Restore(values)

	phase, ok := disorder.ParsePhase(snap.DisorderPhase)
	if !ok {
		log.Printf("[session] snapshot: unknown disorder phase %q, using idle", snap.DisorderPhase)
	}
	events := make([]disorder.Event, 0, len(snap.DisorderEvents))
	for _, ev := range snap.DisorderEvents {
		events = append(events, disorder.Event{
			ID: ev.ID, Kind: ev.Kind, Severity: ev.Severity,
			Remaining: ev.Remaining, Resolved: ev.Resolved,
		})
	}
	s.machine.Restore(snap.DisorderLevel, phase, events, snap.NextEventNum)

	queue := make([]actions.Action, 0, len(snap.QueuedActions))
	for _, a := range snap.QueuedActions {
		queue = append(queue, actions.Action{ID: a.ID, Cost: a.Cost, Effect: a.Effect})
	}
	s.economy.Restore(snap.ActionPoints, snap.ActionTokens, queue)

	s.deck.Restore(snap.DrawIDs, snap.DiscardIDs, snap.CurrentID, snap.PlayedIDs)
	s.roster.Restore(snap.Loyalties, snap.InactiveCharacters)

	// The rng reseeds from the session seed; shuffle order after a
	// load differs from an unbroken run, which a save format without
	// rng internals cannot avoid.
	s.rng.Seed(snap.Seed)
	return nil
}
