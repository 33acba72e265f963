package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/rules"
	"github.com/rmchallenge/companion/internal/session"
)

// MapEntry is one played map inside a session record.
type MapEntry struct {
	MapUID      string    `json:"mapUid"`
	TrackID     string    `json:"trackId"`
	Name        string    `json:"name"`
	Environment string    `json:"environment"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"startedAt"`
}

// OutcomeEntry is one settled map outcome with its timing. RunTimeMs is
// zero for skips, which have no triggering run.
type OutcomeEntry struct {
	Outcome   string    `json:"outcome"`
	At        time.Time `json:"at"`
	RunTimeMs int64     `json:"runTimeMs,omitempty"`
}

// Record is the JSON shape of one session.
type Record struct {
	ID        string                  `json:"id"`
	StartedAt time.Time               `json:"startedAt"`
	EndedAt   *time.Time              `json:"endedAt,omitempty"`
	Rules     rules.RuleSet           `json:"rules"`
	Maps      []MapEntry              `json:"maps"`
	Outcomes  map[string]OutcomeEntry `json:"outcomes"`
}

// JSONBackend writes the record to Sessions/<timestamp>/session.json,
// re-saving on every update. Finalize marks the file read-only so an
// external reader can tell a finished session from a live one.
type JSONBackend struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	dir    string
	path   string
	record *Record
}

func NewJSONBackend(root string, logger *slog.Logger) *JSONBackend {
	return &JSONBackend{root: root, logger: logger}
}

// Dir returns the current session's directory. Empty before Start.
func (b *JSONBackend) Dir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}

func (b *JSONBackend) Start(start time.Time, rs rules.RuleSet) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dir = filepath.Join(b.root, start.Format(dirTimeFormat))
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b.path = filepath.Join(b.dir, recordFileName)
	b.record = &Record{
		ID:        uuid.NewString(),
		StartedAt: start,
		Rules:     rs,
		Outcomes:  make(map[string]OutcomeEntry),
	}
	b.logger.Info("Session record started", "path", b.path, "id", b.record.ID)
	return b.save()
}

func (b *JSONBackend) RecordMap(track *gbx.TrackRecord, trackID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record == nil {
		return fmt.Errorf("session record not started")
	}
	b.record.Maps = append(b.record.Maps, MapEntry{
		MapUID:      track.UID,
		TrackID:     trackID,
		Name:        track.Name,
		Environment: track.Environment,
		Mode:        track.Mode.String(),
		StartedAt:   time.Now(),
	})
	return b.save()
}

func (b *JSONBackend) RecordOutcome(uid string, outcome session.MedalOutcome, detail session.OutcomeDetail) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record == nil {
		return fmt.Errorf("session record not started")
	}
	b.record.Outcomes[uid] = OutcomeEntry{
		Outcome:   string(outcome),
		At:        detail.At,
		RunTimeMs: detail.RunTime.Milliseconds(),
	}
	return b.save()
}

func (b *JSONBackend) CopyReplay(path string) error {
	b.mu.Lock()
	dir := b.dir
	b.mu.Unlock()
	if dir == "" {
		return fmt.Errorf("session record not started")
	}
	return copyReplay(filepath.Join(dir, replaysDirName), path)
}

func (b *JSONBackend) Finalize(end time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.record == nil {
		return fmt.Errorf("session record not started")
	}
	b.record.EndedAt = &end
	if err := b.save(); err != nil {
		return err
	}
	if err := os.Chmod(b.path, 0444); err != nil {
		return fmt.Errorf("mark record read-only: %w", err)
	}
	b.logger.Info("Session record finalized", "path", b.path)
	return nil
}

// save rewrites the record file. Callers hold the mutex.
func (b *JSONBackend) save() error {
	data, err := json.MarshalIndent(b.record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0644); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	return nil
}
