package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"execdisorder/internal/persistence/snapshot"
	"execdisorder/internal/sim/bus"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/session"
	"execdisorder/internal/sim/tuning"
)

// Inspects a saved snapshot and optionally restores it into a live
// session to verify the state digest and resume the simulation.
func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		configDir  = flag.String("configs", "", "config directory (enables session restore)")
		schemaDir  = flag.String("schemas", "./schemas", "schema directory")
		tuningPath = flag.String("tuning", "", "tuning yaml (defaults when empty)")
		resumeDays = flag.Int("resume_days", 0, "days to simulate after restore")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot v%d session=%s day=%d seed=%d decisions=%d chaos=%.1f disorder=%.1f/%s events=%d\n",
		snap.Header.Version, snap.Header.SessionID, snap.Day, snap.Seed,
		snap.Decisions, snap.ChaosScore, snap.DisorderLevel, snap.DisorderPhase, len(snap.DisorderEvents))
	fmt.Printf("deck: draw=%d discard=%d current=%q played=%d\n",
		len(snap.DrawIDs), len(snap.DiscardIDs), snap.CurrentID, len(snap.PlayedIDs))

	kinds := make([]string, 0, len(snap.Resources))
	for k := range snap.Resources {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("resource %-12s %6.1f\n", k, snap.Resources[k])
	}

	names := make([]string, 0, len(snap.Loyalties))
	for n := range snap.Loyalties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("loyalty  %-16s %d\n", n, snap.Loyalties[n])
	}

	if *configDir == "" {
		return
	}

	tune := tuning.Default()
	if *tuningPath != "" {
		tune, err = tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
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

	b := bus.New()
	s := session.New(cats, session.Config{
		Tuning:    tune,
		Seed:      snap.Seed,
		SessionID: snap.Header.SessionID,
	}, b)
	if err := s.LoadSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "load snapshot:", err)
		os.Exit(1)
	}

	fmt.Printf("restored: day=%d phase=%s digest=%s\n", s.Day(), s.GamePhase(), s.StateDigest())

	if *resumeDays <= 0 {
		return
	}

	target := s.Day() + *resumeDays
	for s.Day() < target && !s.Over() {
		s.Tick(tune.FixedStepSec)
	}
	stats := s.GetStats()
	fmt.Printf("resumed to day=%d decisions=%d chaos=%.1f score=%d over=%v\n",
		s.Day(), stats.TotalDecisions, stats.ChaosGenerated, stats.OverallScore, s.Over())
	if s.Over() {
		fmt.Printf("ending=%s\n", s.Ending())
	}
	fmt.Printf("digest=%s\n", s.StateDigest())
}
