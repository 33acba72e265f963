// Package session drives the challenge play loop: acquire a map, launch
// it, wait for a skip or the time limit, classify medals from autosave
// events, and advance. All shared state is owned by the single Run loop;
// the only cross-goroutine mutations are the two cancellation tokens and
// the current-map slot, which sit behind a mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmchallenge/companion/internal/acquire"
	"github.com/rmchallenge/companion/internal/autosave"
	"github.com/rmchallenge/companion/internal/channel"
	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/rules"
)

// Terminal status lines for the session-fatal acquisition outcomes.
const (
	endedDefault        = "Session ended."
	endedNoMaps         = "Session ended. No maps found."
	endedTooManyInvalid = "Session ended. Too many invalid maps."
	endedTimeLimit      = "Session ended. Time limit reached."
)

// ErrNoMapTracked is returned by ReloadMap when no map is in play.
var ErrNoMapTracked = errors.New("no map is currently tracked")

// MedalOutcome is the per-map result the recorder persists.
type MedalOutcome string

const (
	OutcomeGold    MedalOutcome = "gold"
	OutcomeAuthor  MedalOutcome = "author"
	OutcomeSkipped MedalOutcome = "skipped"
)

// Acquirer produces the next playable map. A returned error is a
// transient network failure the session retries with a fixed delay.
type Acquirer interface {
	PrepareNewMap(ctx context.Context, req rules.RequestRules) (acquire.Result, error)
}

// Launcher opens a map file in the external game process.
type Launcher interface {
	Launch(path string) error
}

// OutcomeDetail carries the timing of the run that settled a map's
// outcome: the wall clock when it was recorded and, for medal outcomes,
// the ghost's elapsed time.
type OutcomeDetail struct {
	At      time.Time
	RunTime time.Duration
}

// Recorder persists the session record as it evolves.
type Recorder interface {
	Start(start time.Time, rs rules.RuleSet) error
	RecordMap(track *gbx.TrackRecord, trackID string) error
	RecordOutcome(uid string, outcome MedalOutcome, detail OutcomeDetail) error
	CopyReplay(path string) error
	Finalize(end time.Time) error
}

// Notifier receives every externally observable session transition.
type Notifier interface {
	Status(msg string)
	MapStarted(track *gbx.TrackRecord)
	Medal(uid string, tier autosave.MedalTier)
	MapEnded(uid string)
	SessionEnded(reason string, summary Summary)
}

// Clock abstracts time for the loop's waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }

// Summary is the final tally handed to the notifier when a session ends.
type Summary struct {
	MapsPlayed int
	Gold       int
	Author     int
	Skipped    int
	Duration   time.Duration
}

// Status is a point-in-time snapshot of a running session, sampled by
// the status monitor.
type Status struct {
	Running    bool
	CurrentMap string
	MapsPlayed int
	Gold       int
	Author     int
	Skipped    int
}

// Config holds the loop's retry delays.
type Config struct {
	// NetworkRetryDelay is waited after a transient acquisition failure.
	NetworkRetryDelay time.Duration
	// InvalidRetryDelay is waited after a rejected map before asking again.
	InvalidRetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		NetworkRetryDelay: time.Second,
		InvalidRetryDelay: 500 * time.Millisecond,
	}
}

type currentMap struct {
	track    *gbx.TrackRecord
	trackID  string
	filePath string
}

// Session is the play-loop state machine. Construct with New, drive with
// Run; SkipMapAsync, ReloadMap and End are safe from other goroutines.
type Session struct {
	ruleSet  rules.RuleSet
	acquirer Acquirer
	launcher Launcher
	recorder Recorder
	notifier Notifier
	events   channel.Receiver[autosave.Event]
	clock    Clock
	cfg      Config
	logger   *slog.Logger

	mu         sync.Mutex
	current    *currentMap
	manualSkip bool
	skipCancel context.CancelFunc
	endCancel  context.CancelFunc

	running bool
	gold    map[string]bool
	author  map[string]bool
	skipped map[string]bool

	played    int
	endReason string
}

func New(rs rules.RuleSet, acq Acquirer, launcher Launcher, rec Recorder, notifier Notifier,
	events channel.Receiver[autosave.Event], clock Clock, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		ruleSet:  rs,
		acquirer: acq,
		launcher: launcher,
		recorder: rec,
		notifier: notifier,
		events:   events,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		gold:     make(map[string]bool),
		author:   make(map[string]bool),
		skipped:  make(map[string]bool),
	}
}

// SetNotifier replaces the notifier. Must be called before Run; the
// constructor form exists for callers whose notifier set is known up
// front.
func (s *Session) SetNotifier(n Notifier) {
	s.notifier = n
}

// Run executes the session until a fatal acquisition outcome, the time
// limit, or End. Rule violations abort before anything starts; every
// other termination is a normal session end, not an error.
func (s *Session) Run(ctx context.Context) error {
	if err := s.ruleSet.Validate(); err != nil {
		s.notifier.Status("Session not started: " + err.Error())
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.endCancel = cancel
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.clock.Now()
	if err := s.recorder.Start(start, s.ruleSet); err != nil {
		return fmt.Errorf("start session record: %w", err)
	}
	s.endReason = endedDefault

	for {
		res, ok := s.acquireNext(ctx)
		if !ok {
			break
		}
		if !s.play(ctx, res) {
			break
		}
	}

	end := s.clock.Now()
	if err := s.recorder.Finalize(end); err != nil {
		s.logger.Error("Cannot finalize session record", "error", err)
	}
	summary := s.summary(end.Sub(start))
	s.logger.Info("Session ended", "reason", s.endReason,
		"maps", summary.MapsPlayed, "gold", summary.Gold,
		"author", summary.Author, "skipped", summary.Skipped)
	s.notifier.Status(s.endReason)
	s.notifier.SessionEnded(s.endReason, summary)
	return nil
}

// SkipMapAsync requests a deliberate skip of the current map. It is a
// no-op when no map is tracked.
func (s *Session) SkipMapAsync() {
	s.cancelSkip(true)
}

// ReloadMap re-launches the tracked map's file in the game.
func (s *Session) ReloadMap() error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil || cur.filePath == "" {
		return ErrNoMapTracked
	}
	return s.launcher.Launch(cur.filePath)
}

// End terminates the whole session. The loop exits after the current
// wait unwinds; in-flight acquisition is cancelled.
func (s *Session) End() {
	s.mu.Lock()
	cancel := s.endCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// acquireNext retries acquisition until a map is ready or the session
// must end. The second return value is false on session end.
func (s *Session) acquireNext(ctx context.Context) (acquire.Result, bool) {
	for {
		if ctx.Err() != nil {
			return acquire.Result{}, false
		}
		s.notifier.Status("Acquiring a new map...")

		res, err := s.acquirer.PrepareNewMap(ctx, s.ruleSet.Request)
		if err != nil {
			if ctx.Err() != nil {
				return acquire.Result{}, false
			}
			s.logger.Warn("Acquisition failed, retrying", "error", err)
			s.notifier.Status("Network trouble, retrying...")
			if !s.sleep(ctx, s.cfg.NetworkRetryDelay) {
				return acquire.Result{}, false
			}
			continue
		}

		switch res.Outcome {
		case acquire.OutcomeReady:
			return res, true
		case acquire.OutcomeRetry:
			s.notifier.Status(res.Message)
			if !s.sleep(ctx, s.cfg.InvalidRetryDelay) {
				return acquire.Result{}, false
			}
		case acquire.OutcomeNoMapsFound:
			s.endReason = endedNoMaps
			return acquire.Result{}, false
		case acquire.OutcomeTooManyInvalid:
			s.endReason = endedTooManyInvalid
			return acquire.Result{}, false
		}
	}
}

// play launches one map and waits it out. Returns false when the whole
// session should end.
func (s *Session) play(ctx context.Context, res acquire.Result) bool {
	if err := s.launcher.Launch(res.FilePath); err != nil {
		s.logger.Error("Cannot launch map", "path", res.FilePath, "error", err)
		s.notifier.Status("Could not launch the map, acquiring another...")
		return true
	}

	skipCtx, skipCancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.current = &currentMap{track: res.Track, trackID: res.TrackID, filePath: res.FilePath}
	s.manualSkip = false
	s.skipCancel = skipCancel
	s.mu.Unlock()
	defer skipCancel()

	s.mu.Lock()
	s.played++
	s.mu.Unlock()
	if err := s.recorder.RecordMap(res.Track, res.TrackID); err != nil {
		s.logger.Error("Cannot record map", "uid", res.Track.UID, "error", err)
	}
	s.notifier.MapStarted(res.Track)
	s.notifier.Status("Playing " + res.Track.Name)

	keep := true
	limit := s.clock.After(s.ruleSet.TimeLimit)
	eventCh := s.events.Receive()
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			waiting, keep = false, false
		case <-skipCtx.Done():
			waiting = false
		case <-limit:
			s.endReason = endedTimeLimit
			waiting, keep = false, false
		case ev, ok := <-eventCh:
			if !ok {
				// Watcher gone; a nil channel blocks this case for good.
				eventCh = nil
				continue
			}
			if err := s.evaluate(ev); err != nil {
				s.logger.Error("Autosave evaluation failed", "file", ev.FileName, "error", err)
			}
		}
	}

	s.mu.Lock()
	manual := s.manualSkip
	uid := s.current.track.UID
	s.current = nil
	s.skipCancel = nil
	s.mu.Unlock()

	s.mu.Lock()
	skipIt := manual && !s.gold[uid] && !s.author[uid]
	if skipIt {
		s.skipped[uid] = true
	}
	s.mu.Unlock()
	if skipIt {
		detail := OutcomeDetail{At: s.clock.Now()}
		if err := s.recorder.RecordOutcome(uid, OutcomeSkipped, detail); err != nil {
			s.logger.Error("Cannot record skip", "uid", uid, "error", err)
		}
	}
	s.notifier.MapEnded(uid)
	return keep
}

// evaluate classifies one autosave event against the tracked map. Stale
// or foreign events are ignored; an unknown play mode is a hard error
// for this event only.
func (s *Session) evaluate(ev autosave.Event) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil || ev.Replay == nil || ev.Replay.MapUID != cur.track.UID {
		return nil
	}

	uid := cur.track.UID
	medals := cur.track.Medals
	if medals.AuthorTime == nil {
		// A map without an author time cannot be medal-classified at
		// all; advance as an implicit skip.
		s.logger.Warn("Tracked map has no author time, auto-skipping", "uid", uid)
		s.cancelSkip(false)
		return nil
	}

	ghost := ev.Replay.Ghost
	authorReached, err := autosave.CheckMedal(cur.track.Mode, ghost, medals, autosave.Author)
	if err != nil {
		return fmt.Errorf("classify run on %s: %w", uid, err)
	}
	if authorReached {
		s.mu.Lock()
		delete(s.gold, uid)
		s.author[uid] = true
		s.mu.Unlock()
		s.recordMedal(uid, autosave.Author, ev.Path, ghost.Time)
		s.notifier.Status("Author medal! Moving on.")
		s.cancelSkip(false)
		return nil
	}

	goldReached, err := autosave.CheckMedal(cur.track.Mode, ghost, medals, autosave.Gold)
	if err != nil {
		return fmt.Errorf("classify run on %s: %w", uid, err)
	}
	s.mu.Lock()
	newGold := goldReached && !s.gold[uid] && !s.author[uid]
	if newGold {
		s.gold[uid] = true
	}
	s.mu.Unlock()
	if newGold {
		s.recordMedal(uid, autosave.Gold, ev.Path, ghost.Time)
		s.notifier.Status("Gold medal. Push for author or skip.")
	}
	return nil
}

func (s *Session) recordMedal(uid string, tier autosave.MedalTier, replayPath string, runTime time.Duration) {
	outcome := OutcomeGold
	if tier == autosave.Author {
		outcome = OutcomeAuthor
	}
	detail := OutcomeDetail{At: s.clock.Now(), RunTime: runTime}
	if err := s.recorder.RecordOutcome(uid, outcome, detail); err != nil {
		s.logger.Error("Cannot record medal", "uid", uid, "tier", tier.String(), "error", err)
	}
	if err := s.recorder.CopyReplay(replayPath); err != nil {
		s.logger.Error("Cannot copy replay", "path", replayPath, "error", err)
	}
	s.notifier.Medal(uid, tier)
}

// cancelSkip fires the per-map skip token. The manual flag marks a
// deliberate user skip as opposed to the automatic post-medal advance.
func (s *Session) cancelSkip(manual bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.skipCancel == nil {
		return
	}
	if manual {
		s.manualSkip = true
	}
	s.skipCancel()
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

func (s *Session) summary(elapsed time.Duration) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		MapsPlayed: s.played,
		Gold:       len(s.gold),
		Author:     len(s.author),
		Skipped:    len(s.skipped),
		Duration:   elapsed,
	}
}

// Status returns a snapshot of the session's progress. Safe to call
// from any goroutine.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:    s.running,
		MapsPlayed: s.played,
		Gold:       len(s.gold),
		Author:     len(s.author),
		Skipped:    len(s.skipped),
	}
	if s.current != nil {
		st.CurrentMap = s.current.track.Name
	}
	return st
}
