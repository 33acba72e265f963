package autosave

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rmchallenge/companion/internal/channel"
	"github.com/rmchallenge/companion/internal/gbx"
)

// Event is one observed autosave write, fully decoded.
type Event struct {
	FileName string // relative to the autosave root
	Path     string
	Replay   *gbx.ReplayRecord
}

// WatcherConfig tunes how the watcher copes with the game still writing
// the file when the first notification arrives.
type WatcherConfig struct {
	ReadRetries int
	RetryDelay  time.Duration
}

// DefaultWatcherConfig matches the game's observed write behavior.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{ReadRetries: 5, RetryDelay: 200 * time.Millisecond}
}

// Watcher turns filesystem notifications for the autosave directory into
// decoded replay events. It updates the registry's header index and
// forwards each decoded replay on its event channel.
type Watcher struct {
	registry *Registry
	decoder  gbx.Decoder
	cfg      WatcherConfig
	logger   *slog.Logger

	events channel.Channel[Event]

	fsw  *fsnotify.Watcher
	done chan struct{}

	// lastWrite dedupes the multiple notifications one game write emits.
	mu        sync.Mutex
	lastWrite map[string]time.Time
}

// NewWatcher creates a watcher over the registry's root. Call Start to
// begin delivering events.
func NewWatcher(registry *Registry, decoder gbx.Decoder, cfg WatcherConfig, logger *slog.Logger) *Watcher {
	return &Watcher{
		registry:  registry,
		decoder:   decoder,
		cfg:       cfg,
		logger:    logger,
		events:    channel.New[Event](64),
		done:      make(chan struct{}),
		lastWrite: make(map[string]time.Time),
	}
}

// Events returns the stream of decoded autosave events.
func (w *Watcher) Events() channel.Receiver[Event] {
	return w.events
}

// Start begins watching the autosave root.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if err := fsw.Add(w.registry.Root()); err != nil {
		fsw.Close()
		return fmt.Errorf("watching autosave directory: %w", err)
	}
	w.fsw = fsw

	go w.loop()
	return nil
}

// Stop shuts the watcher down and closes the event channel.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsw != nil {
		w.fsw.Close()
	}
}

func (w *Watcher) loop() {
	defer w.events.Close()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !IsReplayFile(ev.Name) {
				continue
			}
			w.handle(ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.logger.Debug("Autosave vanished before stat", "path", path, "error", err)
		return
	}
	if w.seen(path, info.ModTime()) {
		return
	}

	rec, err := w.decodeWithRetry(path)
	if err != nil {
		w.logger.Warn("Giving up on autosave after retries", "path", path, "error", err)
		return
	}

	rel, err := filepath.Rel(w.registry.Root(), path)
	if err != nil {
		rel = filepath.Base(path)
	}
	w.registry.Add(rec.MapUID, rel)

	// A full buffer must not wedge the loop past Stop.
	if !w.events.SendUntil(Event{FileName: rel, Path: path, Replay: rec}, w.done) {
		w.logger.Debug("Watcher stopping, dropping autosave event", "file", rel)
	}
}

// seen dedupes repeat notifications for the same write via the file's
// last-write timestamp.
func (w *Watcher) seen(path string, mod time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.lastWrite[path]; ok && prev.Equal(mod) {
		return true
	}
	w.lastWrite[path] = mod
	return false
}

// decodeWithRetry reads and decodes the replay, retrying while the game
// may still be writing the file.
func (w *Watcher) decodeWithRetry(path string) (*gbx.ReplayRecord, error) {
	var lastErr error
	attempts := w.cfg.ReadRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-w.done:
				return nil, fmt.Errorf("watcher stopped")
			case <-time.After(w.cfg.RetryDelay):
			}
		}
		rec, err := gbx.DecodeReplayFile(w.decoder, path)
		if err == nil {
			return rec, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
