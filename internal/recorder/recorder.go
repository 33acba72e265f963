// Package recorder persists the evolving session record. Two backends
// exist: a JSON file per session (the default) and a relational store
// via gorm. Both also keep a per-session folder of copied replay files.
package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/rmchallenge/companion/internal/session"
)

// session directory layout
const (
	recordFileName = "session.json"
	replaysDirName = "Replays"
	dirTimeFormat  = "2006-01-02_15-04-05"
)

// New selects a backend by name. "json" writes one record file per
// session under root; "database" writes rows through db and keeps only
// the replay copies under root.
func New(backend, root string, db *gorm.DB, logger *slog.Logger) (session.Recorder, error) {
	switch backend {
	case "", "json":
		return NewJSONBackend(root, logger), nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("database backend requires a connection")
		}
		return NewGormBackend(db, root, logger), nil
	}
	return nil, fmt.Errorf("unknown recorder backend %q", backend)
}

// copyReplay duplicates one autosave file into the session's replay
// folder, creating it on first use.
func copyReplay(dir, src string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open replay: %w", err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return fmt.Errorf("create replay copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy replay: %w", err)
	}
	return out.Close()
}
