// Package gbx decodes the parts of the game's .Gbx container the
// companion needs: the uncompressed header with its embedded XML chunk,
// plus a raw scan of the body for block identifiers and the Unlimiter
// chunk signature. Everything else in the container is out of scope.
package gbx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"
)

// PlayMode is the map's game mode as declared in the header.
type PlayMode int

const (
	ModeUnknown PlayMode = iota
	ModeRace
	ModePuzzle
	ModePlatform
	ModeStunts
)

// ErrUnknownPlayMode is returned where a medal decision is required for a
// mode without defined thresholds.
var ErrUnknownPlayMode = errors.New("gbx: unknown play mode")

func (m PlayMode) String() string {
	switch m {
	case ModeRace:
		return "Race"
	case ModePuzzle:
		return "Puzzle"
	case ModePlatform:
		return "Platform"
	case ModeStunts:
		return "Stunts"
	}
	return "Unknown"
}

func parsePlayMode(s string) PlayMode {
	switch s {
	case "Race", "race":
		return ModeRace
	case "Puzzle", "puzzle":
		return ModePuzzle
	case "Platform", "platform":
		return ModePlatform
	case "Stunts", "stunts":
		return ModeStunts
	}
	return ModeUnknown
}

// Size is the map's declared grid footprint.
type Size struct {
	X, Y, Z int
}

// Medals holds the per-map medal thresholds. Times for Race/Puzzle/
// Platform, scores for Stunts. Author may be absent on anomalous maps.
type Medals struct {
	Bronze      time.Duration
	Silver      time.Duration
	Gold        time.Duration
	AuthorTime  *time.Duration
	AuthorScore int
}

// TrackRecord is the fixed decoded form of a challenge file.
type TrackRecord struct {
	UID         string
	Name        string
	Author      string
	Environment string
	Vehicle     string
	Mood        string
	Mode        PlayMode
	Laps        int
	Medals      Medals

	// Size and Blocks come from the body scan and may be absent for
	// containers whose body keeps no literal block runs.
	Size   *Size
	Blocks []string

	HasUnlimiter bool
}

// Ghost is the single recorded run embedded in a replay.
type Ghost struct {
	Time       time.Duration
	Respawns   int
	StuntScore int
}

// ReplayRecord is the fixed decoded form of a replay (autosave) file.
// The header repeats the map's theme and medal thresholds, so a replay
// alone is enough to classify the recorded run.
type ReplayRecord struct {
	MapUID      string
	MapName     string
	Environment string
	Vehicle     string
	Mode        PlayMode
	Medals      Medals
	Ghost       Ghost
}

// Decoder is the collaborator the registry and acquirer depend on. The
// shipped implementation is header-based; tests substitute fakes.
type Decoder interface {
	// DecodeTrack decodes a challenge file into a TrackRecord.
	DecodeTrack(data []byte) (*TrackRecord, error)

	// DecodeReplayHeader decodes only the cheap identifying fields of a
	// replay (map UID and file-level metadata), skipping the ghost.
	DecodeReplayHeader(data []byte) (*ReplayRecord, error)

	// DecodeReplay fully decodes a replay including its ghost run.
	DecodeReplay(data []byte) (*ReplayRecord, error)
}

var gbxMagic = []byte("GBX")

// ErrNotGBX is returned for data that is not a .Gbx container at all.
var ErrNotGBX = errors.New("gbx: missing GBX magic")

// DecodeTrackFile decodes a challenge file from disk with the given decoder.
func DecodeTrackFile(d Decoder, path string) (*TrackRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading track file: %w", err)
	}
	return d.DecodeTrack(data)
}

// DecodeReplayFile fully decodes a replay file from disk.
func DecodeReplayFile(d Decoder, path string) (*ReplayRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading replay file: %w", err)
	}
	return d.DecodeReplay(data)
}

func checkMagic(data []byte) error {
	if len(data) < 3 || !bytes.Equal(data[:3], gbxMagic) {
		return ErrNotGBX
	}
	return nil
}
