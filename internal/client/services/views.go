package services

import (
	"context"
	"sync/atomic"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/logging"
)

// ViewTracker reports one profile view per activation. A new activation
// needs a new tracker.
type ViewTracker struct {
	client  client.Client
	log     logging.Logger
	tracked atomic.Bool
}

func NewViewTracker(c client.Client, log logging.Logger) *ViewTracker {
	if log == nil {
		log = logging.Nop()
	}
	return &ViewTracker{client: c, log: log}
}

// TrackOnce sends the view event for profileID unless this tracker already
// did. The flag is set before the call, so failures are not retried. Errors
// are logged and swallowed; the result is nil when nothing was counted.
func (t *ViewTracker) TrackOnce(ctx context.Context, profileID int64) *models.ViewResult {
	if !t.tracked.CompareAndSwap(false, true) {
		return nil
	}
	res, err := t.client.TrackView(ctx, profileID)
	if err != nil {
		t.log.Warn(ctx, "view tracking skipped", "profile_id", profileID, "error", err)
		return nil
	}
	return res
}

// Tracked reports whether TrackOnce already fired.
func (t *ViewTracker) Tracked() bool {
	return t.tracked.Load()
}
