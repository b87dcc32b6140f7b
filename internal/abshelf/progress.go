package abshelf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

func progressPath(key reconcile.Key) string {
	if key.EpisodeID != "" {
		return fmt.Sprintf("/api/me/progress/%s/%s", key.ItemID, key.EpisodeID)
	}
	return "/api/me/progress/" + key.ItemID
}

// FetchProgress returns the server's progress record for a media key,
// or nil when the server has none yet.
func (c *Client) FetchProgress(ctx context.Context, key reconcile.Key) (*reconcile.Record, error) {
	var mp MediaProgress
	err := c.do(ctx, http.MethodGet, progressPath(key), nil, &mp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &reconcile.Record{
		Key:       key,
		Position:  mp.CurrentTime,
		Duration:  mp.Duration,
		Finished:  mp.IsFinished,
		UpdatedAt: time.UnixMilli(mp.LastUpdate).UTC(),
		Origin:    reconcile.OriginServer,
	}, nil
}

// PushProgress writes a record to the server. Failures surface to the
// caller; there is no retry here.
func (c *Client) PushProgress(ctx context.Context, rec reconcile.Record) error {
	update := ProgressUpdate{
		CurrentTime: rec.Position,
		Duration:    rec.Duration,
		IsFinished:  rec.Finished,
	}
	if rec.Duration > 0 {
		update.Progress = rec.Position / rec.Duration
	}
	return c.do(ctx, http.MethodPatch, progressPath(rec.Key), update, nil)
}
