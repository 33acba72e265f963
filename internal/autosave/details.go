package autosave

import (
	"time"

	"github.com/rmchallenge/companion/internal/gbx"
)

// MedalTier is one of the four per-map performance tiers.
type MedalTier int

const (
	Bronze MedalTier = iota
	Silver
	Gold
	Author
)

func (t MedalTier) String() string {
	switch t {
	case Bronze:
		return "Bronze"
	case Silver:
		return "Silver"
	case Gold:
		return "Gold"
	case Author:
		return "Author"
	}
	return "Unknown"
}

// Details is the fully-decoded per-map cache used for display: the run's
// result plus the map's thresholds, derived lazily from header entries.
type Details struct {
	FileName    string
	MapUID      string
	MapName     string
	Environment string
	Vehicle     string
	Mode        gbx.PlayMode

	Time       time.Duration
	Respawns   int
	StuntScore int

	Medals gbx.Medals
}

func detailsFromReplay(fileName string, rec *gbx.ReplayRecord) *Details {
	return &Details{
		FileName:    fileName,
		MapUID:      rec.MapUID,
		MapName:     rec.MapName,
		Environment: rec.Environment,
		Vehicle:     rec.Vehicle,
		Mode:        rec.Mode,
		Time:        rec.Ghost.Time,
		Respawns:    rec.Ghost.Respawns,
		StuntScore:  rec.Ghost.StuntScore,
		Medals:      rec.Medals,
	}
}

// HasMedal reports whether the recorded run reaches the given tier. An
// unrecognized play mode satisfies no tier here; the session's medal
// evaluation path treats it as a hard error instead (see CheckMedal).
func (d *Details) HasMedal(tier MedalTier) bool {
	ok, err := CheckMedal(d.Mode, gbx.Ghost{
		Time:       d.Time,
		Respawns:   d.Respawns,
		StuntScore: d.StuntScore,
	}, d.Medals, tier)
	if err != nil {
		return false
	}
	return ok
}

func (d *Details) HasBronzeMedal() bool { return d.HasMedal(Bronze) }
func (d *Details) HasSilverMedal() bool { return d.HasMedal(Silver) }
func (d *Details) HasGoldMedal() bool   { return d.HasMedal(Gold) }
func (d *Details) HasAuthorMedal() bool { return d.HasMedal(Author) }

// CheckMedal decides whether a ghost run reaches a medal tier on a map
// with the given thresholds.
//
// Race/Puzzle compare elapsed time against the tier threshold. Platform
// uses the two-part rule for every tier: when the author score is set the
// run must not exceed it in respawns; a respawn-free run may instead beat
// the tier's time. Stunts compare score against the tier threshold.
func CheckMedal(mode gbx.PlayMode, ghost gbx.Ghost, medals gbx.Medals, tier MedalTier) (bool, error) {
	switch mode {
	case gbx.ModeRace, gbx.ModePuzzle, gbx.ModePlatform, gbx.ModeStunts:
	default:
		return false, gbx.ErrUnknownPlayMode
	}

	threshold, ok := tierThreshold(medals, tier)
	if !ok {
		return false, nil
	}

	switch mode {
	case gbx.ModeRace, gbx.ModePuzzle:
		return ghost.Time <= threshold, nil
	case gbx.ModePlatform:
		if medals.AuthorScore > 0 && ghost.Respawns <= medals.AuthorScore {
			return true, nil
		}
		return ghost.Respawns == 0 && ghost.Time <= threshold, nil
	case gbx.ModeStunts:
		// Stunt thresholds share the medal time fields; the raw value
		// is a score, so convert back before comparing.
		return ghost.StuntScore >= int(threshold/time.Millisecond), nil
	}
	return false, nil
}

func tierThreshold(medals gbx.Medals, tier MedalTier) (time.Duration, bool) {
	switch tier {
	case Bronze:
		return medals.Bronze, medals.Bronze > 0
	case Silver:
		return medals.Silver, medals.Silver > 0
	case Gold:
		return medals.Gold, medals.Gold > 0
	case Author:
		if medals.AuthorTime == nil {
			return 0, false
		}
		return *medals.AuthorTime, true
	}
	return 0, false
}
