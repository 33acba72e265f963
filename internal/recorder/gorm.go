package recorder

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/rules"
	"github.com/rmchallenge/companion/internal/session"
)

// SessionRow is one challenge session.
type SessionRow struct {
	ID        string `gorm:"primaryKey"`
	StartedAt time.Time
	EndedAt   *time.Time
	Rules     datatypes.JSON
	Finalized bool
}

func (SessionRow) TableName() string { return "sessions" }

// MapRow is one played map within a session; Outcome and its timing
// columns are filled in as medals and skips arrive.
type MapRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"index"`
	MapUID      string `gorm:"index"`
	TrackID     string
	Name        string
	Environment string
	Mode        string
	StartedAt   time.Time
	Outcome     string
	OutcomeAt   *time.Time
	RunTimeMs   int64
}

func (MapRow) TableName() string { return "session_maps" }

// Models lists the schemas the gorm backend migrates.
func Models() []any {
	return []any{&SessionRow{}, &MapRow{}}
}

// GormBackend persists the session through a relational store. Replay
// copies still land on disk under root, next to where the JSON backend
// would put them.
type GormBackend struct {
	db     *gorm.DB
	root   string
	logger *slog.Logger

	sessionID string
	dir       string
}

func NewGormBackend(db *gorm.DB, root string, logger *slog.Logger) *GormBackend {
	return &GormBackend{db: db, root: root, logger: logger}
}

func (b *GormBackend) Start(start time.Time, rs rules.RuleSet) error {
	snapshot, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	row := SessionRow{
		ID:        uuid.NewString(),
		StartedAt: start,
		Rules:     snapshot,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create session row: %w", err)
	}
	b.sessionID = row.ID
	b.dir = filepath.Join(b.root, start.Format(dirTimeFormat))
	b.logger.Info("Session row created", "id", b.sessionID)
	return nil
}

func (b *GormBackend) RecordMap(track *gbx.TrackRecord, trackID string) error {
	row := MapRow{
		SessionID:   b.sessionID,
		MapUID:      track.UID,
		TrackID:     trackID,
		Name:        track.Name,
		Environment: track.Environment,
		Mode:        track.Mode.String(),
		StartedAt:   time.Now(),
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("create map row: %w", err)
	}
	return nil
}

func (b *GormBackend) RecordOutcome(uid string, outcome session.MedalOutcome, detail session.OutcomeDetail) error {
	err := b.db.Model(&MapRow{}).
		Where("session_id = ? AND map_uid = ?", b.sessionID, uid).
		Updates(map[string]any{
			"outcome":     string(outcome),
			"outcome_at":  detail.At,
			"run_time_ms": detail.RunTime.Milliseconds(),
		}).Error
	if err != nil {
		return fmt.Errorf("update map outcome: %w", err)
	}
	return nil
}

func (b *GormBackend) CopyReplay(path string) error {
	if b.dir == "" {
		return fmt.Errorf("session record not started")
	}
	return copyReplay(filepath.Join(b.dir, replaysDirName), path)
}

func (b *GormBackend) Finalize(end time.Time) error {
	err := b.db.Model(&SessionRow{}).
		Where("id = ?", b.sessionID).
		Updates(map[string]any{"ended_at": end, "finalized": true}).Error
	if err != nil {
		return fmt.Errorf("finalize session row: %w", err)
	}
	return nil
}
