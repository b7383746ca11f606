// Package archive files away the final snapshot of a completed term
// so save slots can be reused without losing the run.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"execdisorder/internal/persistence/snapshot"
)

type TermArchiveMeta struct {
	SessionID string  `json:"session_id"`
	Days      int     `json:"days"`
	Decisions int     `json:"decisions"`
	Chaos     float64 `json:"chaos"`
	Ending    string  `json:"ending"`
	Seed      int64   `json:"seed"`
	Snapshot  string  `json:"snapshot"`
	CreatedAt string  `json:"created_at"`
}

// ArchiveTermSnapshot copies a completed run's final snapshot into
// `baseDir/archives/<session_id>/` alongside a meta.json describing
// the run. The source snapshot file is left in place.
func ArchiveTermSnapshot(baseDir, snapshotPath, ending string, snap snapshot.SnapshotV1) (archivedPath string, err error) {
	if snap.Header.SessionID == "" {
		return "", fmt.Errorf("snapshot has no session id")
	}

	archiveDir := filepath.Join(baseDir, "archives", snap.Header.SessionID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := TermArchiveMeta{
		SessionID: snap.Header.SessionID,
		Days:      snap.Day,
		Decisions: snap.Decisions,
		Chaos:     snap.ChaosScore,
		Ending:    ending,
		Seed:      snap.Seed,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
