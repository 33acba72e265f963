package autosave

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, dir string, dec *fakeDecoder) (*Watcher, *Registry) {
	t.Helper()
	logger := slog.Default()
	reg := NewRegistry(dir, dec, logger)
	w := NewWatcher(reg, dec, WatcherConfig{
		ReadRetries: 3,
		RetryDelay:  10 * time.Millisecond,
	}, logger)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return w, reg
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events().Receive():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no autosave event delivered")
		return Event{}
	}
}

func TestWatcher_DeliversDecodedEvent(t *testing.T) {
	dir := t.TempDir()
	w, reg := startWatcher(t, dir, &fakeDecoder{})

	writeReplay(t, dir, "run1.Replay.Gbx", "uid-1")

	ev := waitEvent(t, w)
	assert.Equal(t, "run1.Replay.Gbx", ev.FileName)
	require.NotNil(t, ev.Replay)
	assert.Equal(t, "uid-1", ev.Replay.MapUID)

	// The write also lands in the played index.
	assert.True(t, reg.Has("uid-1"))
}

func TestWatcher_IgnoresNonReplayFiles(t *testing.T) {
	dir := t.TempDir()
	w, _ := startWatcher(t, dir, &fakeDecoder{})

	writeReplay(t, dir, "notes.txt", "uid-noise")
	writeReplay(t, dir, "run2.Replay.Gbx", "uid-2")

	ev := waitEvent(t, w)
	assert.Equal(t, "uid-2", ev.Replay.MapUID)
}

func TestWatcher_SkipsUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	dec := &fakeDecoder{failOn: map[string]bool{"uid-bad": true}}
	w, reg := startWatcher(t, dir, dec)

	writeReplay(t, dir, "bad.Replay.Gbx", "uid-bad")
	writeReplay(t, dir, "good.Replay.Gbx", "uid-good")

	ev := waitEvent(t, w)
	assert.Equal(t, "uid-good", ev.Replay.MapUID)
	assert.False(t, reg.Has("uid-bad"))
}
