package autosave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmchallenge/companion/internal/gbx"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func msPtr(n int) *time.Duration {
	d := ms(n)
	return &d
}

func raceMedals() gbx.Medals {
	return gbx.Medals{
		Bronze:     ms(60000),
		Silver:     ms(40000),
		Gold:       ms(35000),
		AuthorTime: msPtr(32000),
	}
}

func TestCheckMedal_RaceTimeOnGoldBoundary(t *testing.T) {
	d := Details{
		Mode:   gbx.ModeRace,
		Time:   ms(35000),
		Medals: raceMedals(),
	}

	assert.True(t, d.HasBronzeMedal())
	assert.True(t, d.HasSilverMedal())
	assert.True(t, d.HasGoldMedal())
	assert.False(t, d.HasAuthorMedal())
}

func TestCheckMedal_TierMonotonicity(t *testing.T) {
	medals := raceMedals()
	tiers := []MedalTier{Bronze, Silver, Gold, Author}

	for _, run := range []time.Duration{ms(31000), ms(33000), ms(38000), ms(45000), ms(90000)} {
		prev := true
		for _, tier := range tiers {
			got, err := CheckMedal(gbx.ModeRace, gbx.Ghost{Time: run}, medals, tier)
			require.NoError(t, err)
			if got {
				// A reached tier implies every easier tier was reached too.
				assert.True(t, prev, "run %v reached %v without the tier below", run, tier)
			}
			prev = got
		}
	}
}

func TestCheckMedal_PuzzleUsesTime(t *testing.T) {
	got, err := CheckMedal(gbx.ModePuzzle, gbx.Ghost{Time: ms(39999)}, raceMedals(), Silver)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCheckMedal_PlatformRespawnRule(t *testing.T) {
	medals := gbx.Medals{
		Bronze:      ms(120000),
		Silver:      ms(90000),
		Gold:        ms(60000),
		AuthorTime:  msPtr(45000),
		AuthorScore: 3,
	}

	// Within the author respawn budget: every tier with a threshold passes
	// regardless of the run's time.
	got, err := CheckMedal(gbx.ModePlatform, gbx.Ghost{Time: ms(300000), Respawns: 2}, medals, Gold)
	require.NoError(t, err)
	assert.True(t, got)

	// Over budget but respawn free and fast enough.
	got, err = CheckMedal(gbx.ModePlatform, gbx.Ghost{Time: ms(55000), Respawns: 0}, medals, Gold)
	require.NoError(t, err)
	assert.True(t, got)

	// Over budget with respawns: time no longer counts.
	got, err = CheckMedal(gbx.ModePlatform, gbx.Ghost{Time: ms(55000), Respawns: 4}, medals, Gold)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCheckMedal_StuntsUsesScore(t *testing.T) {
	medals := gbx.Medals{Gold: ms(700)} // threshold encodes a score of 700

	got, err := CheckMedal(gbx.ModeStunts, gbx.Ghost{StuntScore: 700}, medals, Gold)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = CheckMedal(gbx.ModeStunts, gbx.Ghost{StuntScore: 699}, medals, Gold)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCheckMedal_MissingAuthorTime(t *testing.T) {
	medals := gbx.Medals{Bronze: ms(60000), Silver: ms(40000), Gold: ms(35000)}

	got, err := CheckMedal(gbx.ModeRace, gbx.Ghost{Time: ms(1000)}, medals, Author)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCheckMedal_UnknownModeFails(t *testing.T) {
	_, err := CheckMedal(gbx.ModeUnknown, gbx.Ghost{Time: ms(1000)}, raceMedals(), Gold)
	assert.ErrorIs(t, err, gbx.ErrUnknownPlayMode)

	// The error wins even when the tier threshold is absent.
	_, err = CheckMedal(gbx.ModeUnknown, gbx.Ghost{}, gbx.Medals{}, Author)
	assert.ErrorIs(t, err, gbx.ErrUnknownPlayMode)
}

func TestMedalTierString(t *testing.T) {
	assert.Equal(t, "Bronze", Bronze.String())
	assert.Equal(t, "Author", Author.String())
	assert.Equal(t, "Unknown", MedalTier(42).String())
}
