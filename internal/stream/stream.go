// Package stream pushes session transitions to an external GUI over a
// websocket connection. The companion dials out; the GUI hosts the
// endpoint and acks the session boundary messages.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rmchallenge/companion/internal/autosave"
	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/session"
)

// Config holds the stream endpoint.
type Config struct {
	URL string
}

// Notifier implements session.Notifier over a websocket connection.
// All sends are fire-and-forget except the session boundaries, which
// wait for an ack.
type Notifier struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger
}

var _ session.Notifier = (*Notifier)(nil)

// New creates a stream notifier. Dial happens in Connect.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		conn:   newConnection(logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Connect dials the GUI endpoint.
func (n *Notifier) Connect() error {
	return n.conn.dial(n.cfg.URL)
}

// OnCommand installs the handler invoked for every command message the
// GUI sends over the stream. Must be set before Connect.
func (n *Notifier) OnCommand(handler func(CommandMessage)) {
	n.conn.mu.Lock()
	n.conn.onCommand = handler
	n.conn.mu.Unlock()
}

// Close disconnects from the GUI.
func (n *Notifier) Close() error {
	return n.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop.
func (n *Notifier) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		n.logger.Error("Cannot marshal stream message", "type", msgType, "error", err)
		return
	}
	n.conn.send(data)
}

// SessionStarted announces the session and waits for the GUI's ack. The
// message is cached for replay when the connection drops mid-session.
func (n *Notifier) SessionStarted(p SessionStartedPayload) error {
	data, err := marshalEnvelope(TypeSessionStarted, p)
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	n.conn.mu.Lock()
	n.conn.cachedSessionStart = data
	n.conn.mu.Unlock()

	return n.conn.sendAndWait(data, TypeSessionStarted, ackTimeout)
}

func (n *Notifier) Status(msg string) {
	n.sendEnvelope(TypeStatus, StatusPayload{Message: msg})
}

func (n *Notifier) MapStarted(track *gbx.TrackRecord) {
	p := MapStartedPayload{
		UID:         track.UID,
		Name:        track.Name,
		Environment: track.Environment,
		Mode:        track.Mode.String(),
	}
	if track.Medals.AuthorTime != nil {
		ms := track.Medals.AuthorTime.Milliseconds()
		p.AuthorTimeMs = &ms
	}
	n.sendEnvelope(TypeMapStarted, p)
}

func (n *Notifier) Medal(uid string, tier autosave.MedalTier) {
	n.sendEnvelope(TypeMedal, MedalPayload{UID: uid, Tier: tier.String()})
}

func (n *Notifier) MapEnded(uid string) {
	n.sendEnvelope(TypeMapEnded, MapEndedPayload{UID: uid})
}

// SessionEnded sends the terminal message, waits for the ack, and
// clears the cached session_started replay.
func (n *Notifier) SessionEnded(reason string, summary session.Summary) {
	p := SessionEndedPayload{
		Reason:     reason,
		MapsPlayed: summary.MapsPlayed,
		Gold:       summary.Gold,
		Author:     summary.Author,
		Skipped:    summary.Skipped,
		DurationMs: summary.Duration.Milliseconds(),
	}
	data, err := marshalEnvelope(TypeSessionEnded, p)
	if err != nil {
		n.logger.Error("Cannot marshal session_ended", "error", err)
		return
	}

	if err := n.conn.sendAndWait(data, TypeSessionEnded, ackTimeout); err != nil {
		n.logger.Warn("GUI did not ack session_ended", "error", err)
	}

	n.conn.mu.Lock()
	n.conn.cachedSessionStart = nil
	n.conn.mu.Unlock()
}

// Multi fans session notifications out to several notifiers.
type Multi []session.Notifier

var _ session.Notifier = (Multi)(nil)

func (m Multi) Status(msg string) {
	for _, n := range m {
		n.Status(msg)
	}
}

func (m Multi) MapStarted(track *gbx.TrackRecord) {
	for _, n := range m {
		n.MapStarted(track)
	}
}

func (m Multi) Medal(uid string, tier autosave.MedalTier) {
	for _, n := range m {
		n.Medal(uid, tier)
	}
}

func (m Multi) MapEnded(uid string) {
	for _, n := range m {
		n.MapEnded(uid)
	}
}

func (m Multi) SessionEnded(reason string, summary session.Summary) {
	for _, n := range m {
		n.SessionEnded(reason, summary)
	}
}

// LogNotifier writes every transition to the application log. It is the
// always-on notifier even when the GUI stream is disabled.
type LogNotifier struct {
	Logger *slog.Logger
}

var _ session.Notifier = (*LogNotifier)(nil)

func (l *LogNotifier) Status(msg string) {
	l.Logger.Info(msg)
}

func (l *LogNotifier) MapStarted(track *gbx.TrackRecord) {
	l.Logger.Info("Map started", "uid", track.UID, "name", track.Name, "env", track.Environment)
}

func (l *LogNotifier) Medal(uid string, tier autosave.MedalTier) {
	l.Logger.Info("Medal", "uid", uid, "tier", tier.String())
}

func (l *LogNotifier) MapEnded(uid string) {
	l.Logger.Info("Map ended", "uid", uid)
}

func (l *LogNotifier) SessionEnded(reason string, summary session.Summary) {
	l.Logger.Info("Session summary", "reason", reason,
		"maps", summary.MapsPlayed, "gold", summary.Gold,
		"author", summary.Author, "skipped", summary.Skipped,
		"duration", summary.Duration.Round(time.Second).String())
}
