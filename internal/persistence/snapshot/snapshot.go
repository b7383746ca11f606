// Package snapshot defines the versioned save record and its on-disk
// codec. The record is flat: plain values and id lists only, so any
// field left zero is visible rather than hiding behind a pointer.
// Files are a one-line JSON header followed by a zstd-compressed gob
// body; the header stays readable with zstdcat for debugging.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Day       int    `json:"day"`
}

// SnapshotV1 captures everything a session needs to resume: no hidden
// state may survive outside this record.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed int64 `json:"seed"`

	// Clock.
	ElapsedSec     float64 `json:"elapsed_sec"`
	AccumulatorSec float64 `json:"accumulator_sec"`
	TimeScale      float64 `json:"time_scale"`
	Paused         bool    `json:"paused"`

	// Session progress.
	Day          int     `json:"day"`
	DayTick      int     `json:"day_tick"`
	Decisions    int     `json:"decisions"`
	ChaosScore   float64 `json:"chaos_score"`
	RandomEvents int     `json:"random_events"`

	// Resource ledger, keyed by canonical kind name.
	Resources map[string]float64 `json:"resources"`

	// Disorder machine.
	DisorderLevel  float64           `json:"disorder_level"`
	DisorderPhase  string            `json:"disorder_phase"`
	DisorderEvents []DisorderEventV1 `json:"disorder_events,omitempty"`
	NextEventNum   uint64            `json:"next_event_num"`

	// Action economy.
	ActionPoints  float64          `json:"action_points"`
	ActionTokens  float64          `json:"action_tokens"`
	QueuedActions []QueuedActionV1 `json:"queued_actions,omitempty"`

	// Deck partition.
	DrawIDs    []string `json:"draw_ids"`
	DiscardIDs []string `json:"discard_ids"`
	CurrentID  string   `json:"current_id,omitempty"`
	PlayedIDs  []string `json:"played_ids,omitempty"`

	// Roster.
	Loyalties          map[string]int `json:"loyalties"`
	InactiveCharacters []string       `json:"inactive_characters,omitempty"`

	// Content identity at save time. A mismatch on load is reported,
	// not fatal; unknown card ids degrade to log lines.
	CardsDigest      string `json:"cards_digest"`
	CharactersDigest string `json:"characters_digest"`
	EventsDigest     string `json:"events_digest"`
}

type DisorderEventV1 struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Severity  float64 `json:"severity"`
	Remaining float64 `json:"remaining"`
	Resolved  bool    `json:"resolved"`
}

type QueuedActionV1 struct {
	ID     string  `json:"id"`
	Cost   float64 `json:"cost"`
	Effect float64 `json:"effect"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is advisory; the gob body repeats it.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
