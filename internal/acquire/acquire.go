// Package acquire fetches candidate maps from the exchange sites: build
// a search query from the session rules, chase the redirect to a track
// identifier, download and decode the map, validate it, and persist the
// accepted bytes to disk.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/mapval"
	"github.com/rmchallenge/companion/internal/rules"
	"github.com/rmchallenge/companion/internal/util"
)

// MaxInvalidAttempts bounds how many rejected maps one session tolerates
// before the filter itself is declared unusable.
const MaxInvalidAttempts = 10

const trackFileExt = ".Challenge.Gbx"

// Outcome tags the result of one acquisition attempt. The two fatal
// outcomes are distinct on purpose: NoMapsFound means the filter matches
// nothing at all, TooManyInvalid means it keeps matching maps the
// session may not play. Callers must not conflate them.
type Outcome int

const (
	// OutcomeReady means a validated map was persisted and is ready to play.
	OutcomeReady Outcome = iota
	// OutcomeRetry is a soft failure; the caller should retry acquisition.
	OutcomeRetry
	// OutcomeNoMapsFound is session-fatal: no map satisfies the filter.
	OutcomeNoMapsFound
	// OutcomeTooManyInvalid is session-fatal: the invalid-map budget ran out.
	OutcomeTooManyInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeRetry:
		return "retry"
	case OutcomeNoMapsFound:
		return "no maps found"
	case OutcomeTooManyInvalid:
		return "too many invalid maps"
	}
	return "unknown"
}

// Result carries one acquisition attempt's outcome. Track and FilePath
// are set only for OutcomeReady; Message is a human-readable note for
// status display on non-ready outcomes.
type Result struct {
	Outcome  Outcome
	Track    *gbx.TrackRecord
	TrackID  string
	FilePath string
	Message  string
}

// Config holds the acquirer's fixed parameters.
type Config struct {
	// Downloads is the directory accepted map files are written to.
	Downloads string
	// RequestTimeout bounds each HTTP request.
	RequestTimeout time.Duration
	// HostOverride, when non-empty, redirects every request to this
	// scheme://host instead of the exchange hosts. Used by tests.
	HostOverride string
}

func DefaultConfig(downloads string) Config {
	return Config{
		Downloads:      downloads,
		RequestTimeout: 30 * time.Second,
	}
}

// Acquirer implements the acquisition loop body. The invalid-attempt
// counter persists across calls within one session; it resets only on
// success or when the budget runs out.
type Acquirer struct {
	client    *resty.Client
	decoder   gbx.Decoder
	validator *mapval.Validator
	rnd       *rand.Rand
	cfg       Config
	logger    *slog.Logger

	attempts atomic.Int32
}

func NewAcquirer(decoder gbx.Decoder, validator *mapval.Validator, rnd *rand.Rand, cfg Config, logger *slog.Logger) *Acquirer {
	client := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &Acquirer{
		client:    client,
		decoder:   decoder,
		validator: validator,
		rnd:       rnd,
		cfg:       cfg,
		logger:    logger,
	}
}

// InvalidAttempts returns the current invalid-map counter, for status
// display. Safe to call from any goroutine.
func (a *Acquirer) InvalidAttempts() int {
	return int(a.attempts.Load())
}

// PrepareNewMap runs one acquisition attempt against the given request
// rules. A returned error is a transient network failure; the caller
// owns the retry backoff. All other conditions are expressed through
// the Result's Outcome.
func (a *Acquirer) PrepareNewMap(ctx context.Context, req rules.RequestRules) (Result, error) {
	searchURL := a.rewrite(req.ToURL(a.rnd))
	a.logger.Debug("Requesting random track", "url", searchURL)

	resp, err := a.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(searchURL)
	if err != nil {
		return Result{}, fmt.Errorf("search request: %w", err)
	}
	resp.RawBody().Close()

	if resp.StatusCode() == http.StatusNotFound {
		return Result{Outcome: OutcomeNoMapsFound, Message: "no track matches the active filter"}, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return Result{}, fmt.Errorf("search request: unexpected status %d", resp.StatusCode())
	}

	trackID := a.resolveTrackID(resp)
	if trackID == "" {
		a.logger.Warn("Search response carried no resolvable track identifier", "url", searchURL)
		return Result{Outcome: OutcomeRetry, Message: "search response had no track identifier"}, nil
	}

	data, name, err := a.download(ctx, resp.RawResponse.Request.URL, trackID)
	if err != nil {
		return Result{}, err
	}
	if data == nil {
		return Result{Outcome: OutcomeRetry, Message: "track download was empty"}, nil
	}

	track, err := a.decoder.DecodeTrack(data)
	if err != nil {
		a.logger.Warn("Downloaded track failed to decode", "track_id", trackID, "error", err)
		return Result{Outcome: OutcomeRetry, Message: "downloaded track is not a valid map"}, nil
	}

	if verdict := a.validator.Validate(track); !verdict.OK {
		return a.rejected(trackID, verdict), nil
	}

	path, err := a.persist(name, track, data)
	if err != nil {
		return Result{}, err
	}

	a.attempts.Store(0)
	a.logger.Info("Track accepted", "track_id", trackID, "uid", track.UID, "name", track.Name, "path", path)
	return Result{Outcome: OutcomeReady, Track: track, TrackID: trackID, FilePath: path}, nil
}

// rejected books an invalid map against the session budget.
func (a *Acquirer) rejected(trackID string, verdict mapval.Verdict) Result {
	attempt := a.attempts.Add(1)
	a.logger.Info("Track rejected", "track_id", trackID,
		"reason", verdict.Reason.String(), "block", verdict.BlockName,
		"attempt", attempt, "budget", MaxInvalidAttempts)
	if attempt >= MaxInvalidAttempts {
		a.attempts.Store(0)
		return Result{Outcome: OutcomeTooManyInvalid, TrackID: trackID, Message: verdict.Message()}
	}
	return Result{Outcome: OutcomeRetry, TrackID: trackID, Message: verdict.Message()}
}

// resolveTrackID pulls the track identifier off the redirected request
// URL's last path segment.
func (a *Acquirer) resolveTrackID(resp *resty.Response) string {
	raw := resp.RawResponse
	if raw == nil || raw.Request == nil || raw.Request.URL == nil {
		return ""
	}
	return util.LastPathSegment(raw.Request.URL.Path)
}

// download fetches the raw map bytes for a track identifier and returns
// them together with a server-suggested file name, if any.
func (a *Acquirer) download(ctx context.Context, resolved *url.URL, trackID string) ([]byte, string, error) {
	dl := *resolved
	dl.Path = "/trackgbx/" + trackID
	dl.RawQuery = ""

	resp, err := a.client.R().SetContext(ctx).Get(a.rewrite(dl.String()))
	if err != nil {
		return nil, "", fmt.Errorf("track download: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		a.logger.Warn("Track download failed", "track_id", trackID, "status", resp.StatusCode())
		return nil, "", nil
	}
	name := util.FileNameFromDisposition(resp.Header().Get("Content-Disposition"))
	return resp.Body(), name, nil
}

// persist writes the accepted map under a safe file name and returns
// the full path.
func (a *Acquirer) persist(suggested string, track *gbx.TrackRecord, data []byte) (string, error) {
	name := util.SanitizeFileName(suggested)
	if name == "" {
		if track.Name != "" {
			name = util.SanitizeFileName(track.Name) + trackFileExt
		} else {
			name = uuid.NewString() + trackFileExt
		}
	}

	if err := os.MkdirAll(a.cfg.Downloads, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(a.cfg.Downloads, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write track file: %w", err)
	}
	return path, nil
}

// rewrite applies the test host override to an absolute URL.
func (a *Acquirer) rewrite(raw string) string {
	if a.cfg.HostOverride == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	o, err := url.Parse(a.cfg.HostOverride)
	if err != nil {
		return raw
	}
	u.Scheme = o.Scheme
	u.Host = o.Host
	return u.String()
}
