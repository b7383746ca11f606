// Package savedb is the SQLite index over save files: slot metadata,
// the decision log, and the content digests each save ran against.
// Snapshot files stay the source of truth; losing this index loses
// only the browsing metadata. Writes go through a background writer
// goroutine so the simulation thread never waits on the disk.
package savedb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"execdisorder/internal/persistence/snapshot"
	"execdisorder/internal/sim/catalogs"
	"execdisorder/internal/sim/tuning"
)

type DB struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSave reqKind = iota + 1
	reqDecision
	reqBarrier
)

type req struct {
	kind     reqKind
	save     saveRow
	decision decisionRow
	barrier  chan struct{}
}

type saveRow struct {
	Slot       string
	SessionID  string
	Day        int
	Decisions  int
	Chaos      float64
	Digest     string
	Path       string
	CardsDigest string
	SavedAt    string
}

type decisionRow struct {
	SessionID   string
	Day         int
	Seq         int
	CardID      string
	OptionIndex int
}

// SaveInfo is one row of the slot index, newest save per slot.
type SaveInfo struct {
	Slot      string
	SessionID string
	Day       int
	Decisions int
	Chaos     float64
	Digest    string
	Path      string
	SavedAt   string
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-style decision log; NORMAL durability is
	// fine for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS content (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS slots (
			slot TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			day INTEGER NOT NULL,
			decisions INTEGER NOT NULL,
			chaos REAL NOT NULL,
			digest TEXT NOT NULL,
			path TEXT NOT NULL,
			cards_digest TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			day INTEGER NOT NULL,
			card_id TEXT NOT NULL,
			option_index INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_day ON decisions(session_id, day);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordSave indexes a snapshot file written to path. Queued; a full
// queue drops the row since the snapshot file itself is authoritative.
func (s *DB) RecordSave(slot, path, digest string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := saveRow{
		Slot:        slot,
		SessionID:   snap.Header.SessionID,
		Day:         snap.Day,
		Decisions:   snap.Decisions,
		Chaos:       snap.ChaosScore,
		Digest:      digest,
		Path:        path,
		CardsDigest: snap.CardsDigest,
		SavedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
	}
}

// RecordDecision appends one resolved card to the session's decision
// log. seq must be the session's running decision count.
func (s *DB) RecordDecision(sessionID string, seq, day int, cardID string, optionIndex int) {
	if s == nil || s.closed.Load() {
		return
	}
	r := decisionRow{
		SessionID: sessionID, Seq: seq, Day: day,
		CardID: cardID, OptionIndex: optionIndex,
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: r}:
	default:
	}
}

// UpsertContent stores the digests and canonical JSON of the loaded
// content plus the applied tuning, so a save browser can tell which
// content a slot belongs to. Synchronous; called once at startup.
func (s *DB) UpsertContent(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	{
		cards := make([]*catalogs.Card, 0, len(cats.Cards.Order))
		for _, id := range cats.Cards.Order {
			cards = append(cards, cats.Cards.ByID[id])
		}
		if b, _ := json.Marshal(cards); len(b) > 0 {
			rows = append(rows, kv{name: "cards", digest: cats.Cards.Digest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Characters.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "characters", digest: cats.Characters.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Events.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "events", digest: cats.Events.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:8]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO content(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Flush blocks until every row queued before the call has been
// committed. Needed before reading the index back in-process.
func (s *DB) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqBarrier, barrier: done}
	<-done
}

// Saves lists the slot index, most recent first.
func (s *DB) Saves() ([]SaveInfo, error) {
	rows, err := s.db.Query(`SELECT slot, session_id, day, decisions, chaos, digest, path, saved_at
		FROM slots ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SaveInfo
	for rows.Next() {
		var si SaveInfo
		if err := rows.Scan(&si.Slot, &si.SessionID, &si.Day, &si.Decisions,
			&si.Chaos, &si.Digest, &si.Path, &si.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

// Lookup returns the save indexed under slot.
func (s *DB) Lookup(slot string) (SaveInfo, bool, error) {
	var si SaveInfo
	err := s.db.QueryRow(`SELECT slot, session_id, day, decisions, chaos, digest, path, saved_at
		FROM slots WHERE slot = ?`, slot).
		Scan(&si.Slot, &si.SessionID, &si.Day, &si.Decisions,
			&si.Chaos, &si.Digest, &si.Path, &si.SavedAt)
	if err == sql.ErrNoRows {
		return SaveInfo{}, false, nil
	}
	if err != nil {
		return SaveInfo{}, false, err
	}
	return si, true, nil
}

// DecisionCount reports how many decisions are logged for a session.
func (s *DB) DecisionCount(sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM decisions WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

func (s *DB) loop() {
	ctx := context.Background()

	insertSave, _ := s.db.Prepare(`INSERT OR REPLACE INTO slots
		(slot,session_id,day,decisions,chaos,digest,path,cards_digest,saved_at)
		VALUES(?,?,?,?,?,?,?,?,?)`)
	insertDecision, _ := s.db.Prepare(`INSERT OR REPLACE INTO decisions
		(session_id,seq,day,card_id,option_index) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertSave != nil {
			_ = insertSave.Close()
		}
		if insertDecision != nil {
			_ = insertDecision.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		if r.kind == reqBarrier {
			commit()
			close(r.barrier)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqSave:
			sv := r.save
			if insertSave != nil {
				if _, err := tx.Stmt(insertSave).Exec(
					sv.Slot, sv.SessionID, sv.Day, sv.Decisions, sv.Chaos,
					sv.Digest, sv.Path, sv.CardsDigest, sv.SavedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Saves are rare and the caller usually reads them back;
			// land them immediately.
			commit()

		case reqDecision:
			d := r.decision
			if insertDecision != nil {
				if _, err := tx.Stmt(insertDecision).Exec(
					d.SessionID, d.Seq, d.Day, d.CardID, d.OptionIndex,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
