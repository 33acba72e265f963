package autosave

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmchallenge/companion/internal/gbx"
)

// fakeDecoder maps file contents (a UID string) straight to records.
type fakeDecoder struct {
	failOn map[string]bool
}

func (f *fakeDecoder) record(data []byte) (*gbx.ReplayRecord, error) {
	uid := string(data)
	if f.failOn[uid] {
		return nil, fmt.Errorf("corrupt replay")
	}
	at := 38 * time.Second
	return &gbx.ReplayRecord{
		MapUID:      uid,
		Environment: "Stadium",
		Vehicle:     "StadiumCar",
		Mode:        gbx.ModeRace,
		Medals: gbx.Medals{
			Bronze:     60 * time.Second,
			Silver:     50 * time.Second,
			Gold:       45 * time.Second,
			AuthorTime: &at,
		},
		Ghost: gbx.Ghost{Time: 40 * time.Second},
	}, nil
}

func (f *fakeDecoder) DecodeTrack([]byte) (*gbx.TrackRecord, error) {
	return nil, fmt.Errorf("not a track decoder")
}

func (f *fakeDecoder) DecodeReplayHeader(data []byte) (*gbx.ReplayRecord, error) {
	return f.record(data)
}

func (f *fakeDecoder) DecodeReplay(data []byte) (*gbx.ReplayRecord, error) {
	return f.record(data)
}

func writeReplay(t *testing.T, dir, name, uid string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(uid), 0644))
}

func newTestRegistry(t *testing.T, dec gbx.Decoder) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir(), dec, slog.Default())
}

func TestScanAll_IndexesReplays(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	writeReplay(t, r.Root(), "A01.Replay.gbx", "uid-a01")
	writeReplay(t, r.Root(), "A02.Replay.gbx", "uid-a02")
	writeReplay(t, r.Root(), "notes.txt", "ignored")

	changed, err := r.ScanAll()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Has("uid-a01"))
	assert.False(t, r.Has("ignored"))
}

func TestScanAll_FirstSeenWins(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	writeReplay(t, r.Root(), "first.Replay.gbx", "uid-dup")
	writeReplay(t, r.Root(), "second.Replay.gbx", "uid-dup")

	changed, err := r.ScanAll()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, r.Len())

	// A second scan adds nothing.
	changed, err = r.ScanAll()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, r.Len())
}

func TestScanAll_CaseInsensitivePattern(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	writeReplay(t, r.Root(), "shout.REPLAY.GBX", "uid-loud")

	_, err := r.ScanAll()
	require.NoError(t, err)
	assert.True(t, r.Has("uid-loud"))
}

func TestScanDetails_SkipsCorruptEntries(t *testing.T) {
	dec := &fakeDecoder{failOn: map[string]bool{"uid-bad": true}}
	r := newTestRegistry(t, dec)
	writeReplay(t, r.Root(), "good.Replay.gbx", "uid-good")

	_, err := r.ScanAll()
	require.NoError(t, err)

	// Index the corrupt one via Add so only the detail decode fails.
	writeReplay(t, r.Root(), "bad.Replay.gbx", "uid-bad")
	r.Add("uid-bad", "bad.Replay.gbx")

	r.ScanDetails()

	_, ok := r.Details("uid-good")
	assert.True(t, ok)
	_, ok = r.Details("uid-bad")
	assert.False(t, ok)
}

func TestScanDetails_CarriesThresholdsAndTheme(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	writeReplay(t, r.Root(), "A05.Replay.gbx", "uid-a05")

	_, err := r.ScanAll()
	require.NoError(t, err)
	r.ScanDetails()

	d, ok := r.Details("uid-a05")
	require.True(t, ok)
	assert.Equal(t, "Stadium", d.Environment)
	assert.Equal(t, "StadiumCar", d.Vehicle)
	require.NotNil(t, d.Medals.AuthorTime)

	// The 40s run clears every tier up to gold against the decoded
	// thresholds, but not the 38s author time.
	assert.True(t, d.HasBronzeMedal())
	assert.True(t, d.HasSilverMedal())
	assert.True(t, d.HasGoldMedal())
	assert.False(t, d.HasAuthorMedal())
}

func TestReset_DropsEverything(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	r.Add("uid-x", "x.Replay.gbx")
	require.Equal(t, 1, r.Len())

	other := t.TempDir()
	r.Reset(other)
	assert.Zero(t, r.Len())
	assert.Equal(t, other, r.Root())
}

func TestAdd_ReportsNewEntriesOnly(t *testing.T) {
	r := newTestRegistry(t, &fakeDecoder{})
	assert.True(t, r.Add("uid-1", "a.Replay.gbx"))
	assert.False(t, r.Add("uid-1", "b.Replay.gbx"))

	h, ok := r.Lookup("uid-1")
	require.True(t, ok)
	assert.Equal(t, "a.Replay.gbx", h.FileName)
}
