// Package autosave indexes the game's autosave replay directory and
// reacts to new replays being written. The index is the session's record
// of which maps have already been played.
package autosave

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rmchallenge/companion/internal/gbx"
)

// replaySuffix is the file pattern the game uses for autosaves.
const replaySuffix = ".replay.gbx"

// scanWorkers bounds the parallel header decode during a full scan.
const scanWorkers = 8

// Header is the cheap per-map index entry: which file witnessed the map.
type Header struct {
	MapUID   string
	FileName string // relative to the autosave root
}

// Registry maps map UIDs to autosave files. Entries are added on scan and
// on watcher events, and only removed by Reset when the user-data root
// changes.
type Registry struct {
	mu      sync.Mutex
	root    string
	headers map[string]Header
	details map[string]*Details

	decoder gbx.Decoder
	logger  *slog.Logger
}

// NewRegistry creates an empty registry rooted at the autosave directory.
func NewRegistry(root string, decoder gbx.Decoder, logger *slog.Logger) *Registry {
	return &Registry{
		root:    root,
		headers: make(map[string]Header),
		details: make(map[string]*Details),
		decoder: decoder,
		logger:  logger,
	}
}

// Root returns the watched autosave directory.
func (r *Registry) Root() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root
}

// Reset drops every entry and repoints the registry at a new root.
func (r *Registry) Reset(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = root
	r.headers = make(map[string]Header)
	r.details = make(map[string]*Details)
}

// Has reports whether a map UID is already indexed.
func (r *Registry) Has(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.headers[uid]
	return ok
}

// Lookup returns the header entry for a map UID.
func (r *Registry) Lookup(uid string) (Header, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.headers[uid]
	return h, ok
}

// Len returns the number of indexed maps.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.headers)
}

// Add records an autosave for a map UID. First-seen wins: a later replay
// for an already-indexed map is ignored, since "already played" only
// needs one witness. Reports whether the entry was new.
func (r *Registry) Add(uid, fileName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.headers[uid]; ok {
		return false
	}
	r.headers[uid] = Header{MapUID: uid, FileName: fileName}
	return true
}

// ScanAll walks the autosave root once, decoding only replay headers, and
// indexes every map it finds. Reports whether any new entry was added.
func (r *Registry) ScanAll() (bool, error) {
	root := r.Root()

	paths := make(chan string, scanWorkers)
	var wg sync.WaitGroup

	var changed bool
	var changedMu sync.Mutex

	for i := 0; i < scanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				uid, ok := r.decodeHeader(path)
				if !ok {
					continue
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					rel = filepath.Base(path)
				}
				if r.Add(uid, rel) {
					changedMu.Lock()
					changed = true
					changedMu.Unlock()
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsReplayFile(path) {
			return nil
		}
		paths <- path
		return nil
	})
	close(paths)
	wg.Wait()

	if walkErr != nil {
		return changed, walkErr
	}
	return changed, nil
}

// ScanDetails fully decodes every indexed autosave to populate the
// display details. Per-entry failures are logged and skipped; one corrupt
// autosave must not abort the scan.
func (r *Registry) ScanDetails() {
	r.mu.Lock()
	pending := make([]Header, 0, len(r.headers))
	for uid, h := range r.headers {
		if _, ok := r.details[uid]; !ok {
			pending = append(pending, h)
		}
	}
	root := r.root
	r.mu.Unlock()

	for _, h := range pending {
		path := filepath.Join(root, h.FileName)
		rec, err := gbx.DecodeReplayFile(r.decoder, path)
		if err != nil {
			r.logger.Warn("Skipping corrupt autosave during detail scan",
				"file", h.FileName, "error", err)
			continue
		}
		d := detailsFromReplay(h.FileName, rec)
		r.mu.Lock()
		r.details[h.MapUID] = d
		r.mu.Unlock()
	}
}

// Details returns the cached detail entry for a map UID, if scanned.
func (r *Registry) Details(uid string) (*Details, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.details[uid]
	return d, ok
}

func (r *Registry) decodeHeader(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("Cannot read autosave", "path", path, "error", err)
		return "", false
	}
	rec, err := r.decoder.DecodeReplayHeader(data)
	if err != nil {
		r.logger.Warn("Cannot decode autosave header", "path", path, "error", err)
		return "", false
	}
	return rec.MapUID, true
}

// IsReplayFile reports whether a path matches the game's autosave pattern.
func IsReplayFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), replaySuffix)
}
