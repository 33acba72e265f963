package influx

import (
	"context"

	"github.com/rmchallenge/companion/internal/autosave"
	"github.com/rmchallenge/companion/internal/gbx"
	"github.com/rmchallenge/companion/internal/session"
)

// Notifier mirrors session transitions into the session_data bucket.
type Notifier struct {
	Manager   *Manager
	SessionID string
}

var _ session.Notifier = (*Notifier)(nil)

// Status lines are log-only, they carry no metric value.
func (n *Notifier) Status(msg string) {}

func (n *Notifier) MapStarted(track *gbx.TrackRecord) {
	point := MapEventPoint(n.SessionID, "map_started", track.UID, track.Name)
	_ = n.Manager.WritePoint(context.Background(), BucketSessionData, point)
}

func (n *Notifier) Medal(uid string, tier autosave.MedalTier) {
	point := MapEventPoint(n.SessionID, "medal_"+tier.String(), uid, "")
	_ = n.Manager.WritePoint(context.Background(), BucketSessionData, point)
}

func (n *Notifier) MapEnded(uid string) {
	point := MapEventPoint(n.SessionID, "map_ended", uid, "")
	_ = n.Manager.WritePoint(context.Background(), BucketSessionData, point)
}

func (n *Notifier) SessionEnded(reason string, summary session.Summary) {
	point := SessionSummaryPoint(n.SessionID, reason,
		summary.MapsPlayed, summary.Gold, summary.Author, summary.Skipped)
	_ = n.Manager.WritePoint(context.Background(), BucketSessionData, point)
}
