// Command playtest runs a full seeded session headlessly: it presents
// and resolves cards with a simple seeded policy, queues the odd
// executive action, and prints the ending and stats. Useful for
// content balancing and as a determinism smoke test.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"execdisorder/internal/persistence/archive"
	simlog "execdisorder/internal/persistence/log"
	"execdisorder/internal/persistence/savedb"
	"execdisorder/internal/persistence/snapshot"
	"execdisorder/internal/sim/actions"
	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/consequence"
	"execdisorder/internal/sim/deck"
	"execdisorder/internal/sim/resources"
	"execdisorder/internal/sim/session"
	"execdisorder/internal/sim/tuning"
)

func main() {
	var (
		seed       = flag.Int64("seed", 1, "session seed")
		days       = flag.Int("days", 100, "stop after this many in-game days")
		configDir  = flag.String("configs", "./configs", "content directory")
		schemaDir  = flag.String("schemas", "./schemas", "schema directory")
		tuningPath = flag.String("tuning", "", "tuning.yaml (default: built-in values)")
		dbPath     = flag.String("db", "", "save index db path (optional)")
		savesDir   = flag.String("saves", "", "snapshot output directory (optional)")
		slot       = flag.String("slot", "playtest", "save slot name")
		logsDir    = flag.String("logs", "", "decision/headline log directory (optional)")
		verbose    = flag.Bool("v", false, "print headlines and day summaries")
	)
	flag.Parse()

	tune := tuning.Default()
	if *tuningPath != "" {
		var err error
		tune, err = tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "tuning:", err)
			os.Exit(1)
		}
	}

	cats, err := catalogs.Load(*configDir, *schemaDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	if cats.Warnings > 0 {
		fmt.Fprintf(os.Stderr, "content loaded with %d warnings\n", cats.Warnings)
	}

	var db *savedb.DB
	if *dbPath != "" {
		db, err = savedb.Open(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open save db:", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.UpsertContent(cats, tune); err != nil {
			fmt.Fprintln(os.Stderr, "index content:", err)
			os.Exit(1)
		}
	}

	sessionID := fmt.Sprintf("playtest-%d", *seed)
	b := bus.New()
	s := session.New(cats, session.Config{Tuning: tune, Seed: *seed, SessionID: sessionID}, b)

	var decisionLog *simlog.DecisionLogger
	var headlineLog *simlog.HeadlineLogger
	if *logsDir != "" {
		sessionDir := filepath.Join(*logsDir, sessionID)
		decisionLog = simlog.NewDecisionLogger(sessionDir)
		headlineLog = simlog.NewHeadlineLogger(sessionDir)
		defer decisionLog.Close()
		defer headlineLog.Close()
	}

	decisionSeq := 0
	bus.Subscribe(b, func(e deck.CardResolved) {
		if db != nil {
			db.RecordDecision(sessionID, decisionSeq, s.Day(), e.CardID, e.OptionIndex)
		}
		if decisionLog != nil {
			_ = decisionLog.WriteDecision(simlog.DecisionEntry{
				SessionID:   sessionID,
				Seq:         decisionSeq,
				Day:         s.Day(),
				CardID:      e.CardID,
				OptionIndex: e.OptionIndex,
			})
		}
		decisionSeq++
		if *verbose {
			fmt.Printf("day %3d  %-24s option %d\n", s.Day(), e.CardID, e.OptionIndex)
		}
	})
	if headlineLog != nil {
		bus.Subscribe(b, func(e consequence.NewsHeadline) {
			_ = headlineLog.WriteHeadline(simlog.HeadlineEntry{
				SessionID: sessionID,
				Day:       s.Day(),
				Text:      e.Text,
			})
		})
	}
	if *verbose {
		bus.Subscribe(b, func(e consequence.NewsHeadline) {
			fmt.Printf("         NEWS: %s\n", e.Text)
		})
		bus.Subscribe(b, func(e session.DayChanged) {
			if e.Day%10 == 0 {
				l := s.Resources()
				fmt.Printf("day %3d  pop %5.1f  stab %5.1f  media %5.1f  econ %5.1f  disorder %5.1f (%s)  crisis %s\n",
					e.Day,
					l.Get(resources.Popularity), l.Get(resources.Stability),
					l.Get(resources.MediaTrust), l.Get(resources.EconomicHealth),
					s.Disorder().Level(), s.Disorder().Phase(), l.CrisisLevel())
			}
		})
	}

	// The policy rng is separate from the session seed so replaying a
	// session under a different policy still ticks identically.
	policy := rand.New(rand.NewSource(*seed ^ 0x5eed))
	step := tune.FixedStepSec
	maxTicks := (*days + 1) * tune.DayTicks

	for tick := 0; tick < maxTicks && !s.Over() && s.Day() <= *days; tick++ {
		s.Tick(step)

		// Face roughly one decision every in-game hour.
		if tick%(tune.DayTicks/24+1) == 0 {
			if id, ok := s.PresentNextCard(); ok {
				n := len(cats.Cards.ByID[id].Options)
				s.MakeChoice(policy.Intn(n))
			}
		}
		// Spend spare points calming things down.
		if tick%97 == 0 && s.Actions().Points() > 30 {
			s.TryEnqueueAction(actions.Action{
				ID:     fmt.Sprintf("damage_control_%d", tick),
				Cost:   10,
				Effect: 5,
			})
		}
	}

	stats := s.GetStats()
	ending := s.Ending()
	if !s.Over() {
		ending = s.DetermineEnding()
	}
	fmt.Printf("\nseed %d: %d days, %d decisions, chaos %.0f\n",
		*seed, stats.DaysInOffice, stats.TotalDecisions, stats.ChaosGenerated)
	fmt.Printf("ending: %s  score: %d  digest: %s\n", ending, stats.OverallScore, s.StateDigest())

	if *savesDir != "" {
		path := filepath.Join(*savesDir, *slot+".snap.zst")
		snap := s.SaveSnapshot()
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
		if db != nil {
			db.RecordSave(*slot, path, s.StateDigest(), snap)
			db.Flush()
		}
		fmt.Printf("saved: %s\n", path)

		if s.Over() {
			archived, err := archive.ArchiveTermSnapshot(*savesDir, path, string(ending), snap)
			if err != nil {
				fmt.Fprintln(os.Stderr, "archive term:", err)
				os.Exit(1)
			}
			fmt.Printf("archived: %s\n", archived)
		}
	}
}
