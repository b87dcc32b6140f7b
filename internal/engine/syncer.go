// Package engine runs the reconciliation loop: it feeds local and
// server records through reconcile.Decide at each trigger point (item
// open, playback stop, periodic pass) and applies the resulting writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaa/shelfsync/internal/output"
	"github.com/jaa/shelfsync/internal/reconcile"
)

var ErrInterrupted = errors.New("sync interrupted")

type Syncer struct {
	Store   Store
	Server  Server
	Emitter output.EventEmitter

	Tolerance         time.Duration
	FinishedThreshold float64
	Now               func() time.Time
}

func NewSyncer(store Store, server Server, emitter output.EventEmitter) *Syncer {
	if emitter == nil {
		emitter = noOpEmitter{}
	}
	return &Syncer{
		Store:             store,
		Server:            server,
		Emitter:           emitter,
		Tolerance:         reconcile.DefaultTolerance,
		FinishedThreshold: 0.95,
		Now:               time.Now,
	}
}

type noOpEmitter struct{}

func (noOpEmitter) Emit(event output.Event) error {
	return nil
}

func (s *Syncer) emit(level output.Level, name output.EventName, key reconcile.Key, message string, details map[string]any) {
	_ = s.Emitter.Emit(output.Event{
		Timestamp: s.now(),
		Level:     level,
		Event:     name,
		ItemID:    key.ItemID,
		EpisodeID: key.EpisodeID,
		Message:   message,
		Details:   details,
	})
}

func (s *Syncer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// SyncItem reconciles one media key. An unreachable server is treated
// as having no record: reconciliation proceeds on what is available and
// never blocks playback. A push that fails is reported in the outcome
// and the record stays flagged for upload; there is no retry here.
func (s *Syncer) SyncItem(ctx context.Context, key reconcile.Key, dryRun bool) (ItemOutcome, error) {
	outcome := ItemOutcome{}

	local, err := s.Store.Get(key)
	if err != nil {
		return outcome, fmt.Errorf("read local progress for %s: %w", key, err)
	}

	server, fetchErr := s.Server.FetchProgress(ctx, key)
	if fetchErr != nil {
		outcome.ServerOffline = true
		server = nil
		s.emit(output.LevelWarn, output.EventServerOffline, key,
			fmt.Sprintf("[%s] server unreachable, reconciling with local record only: %v", key, fetchErr), nil)
	}

	outcome.Decision = reconcile.Decide(local, server, s.Tolerance)
	d := outcome.Decision

	if d.Winner == nil {
		return outcome, nil
	}
	if d.NoAction() {
		s.emit(output.LevelInfo, output.EventItemInSync, key,
			fmt.Sprintf("[%s] in sync at %.1fs", key, d.Winner.Position), map[string]any{"reason": d.Reason})
		return outcome, nil
	}
	if dryRun {
		s.emit(output.LevelInfo, output.EventItemInSync, key,
			fmt.Sprintf("[%s] dry-run: would push=%v write_local=%v (%s)", key, d.PushServer, d.WriteLocal, d.Reason), nil)
		return outcome, nil
	}

	if d.WriteLocal {
		if err := s.Store.Put(*d.Winner, false); err != nil {
			return outcome, fmt.Errorf("write local progress for %s: %w", key, err)
		}
		outcome.Pulled = true
		s.emit(output.LevelInfo, output.EventItemPulled, key,
			fmt.Sprintf("[%s] pulled %.1fs from server (%s)", key, d.Winner.Position, d.Reason),
			map[string]any{"position": d.Winner.Position, "finished": d.Winner.Finished})
	}

	if d.PushServer {
		if outcome.ServerOffline {
			// Keep the record queued; FlushPending picks it up when
			// the server is back.
			if err := s.Store.Put(*d.Winner, true); err != nil {
				return outcome, fmt.Errorf("queue upload for %s: %w", key, err)
			}
			return outcome, nil
		}

		if err := s.Server.PushProgress(ctx, *d.Winner); err != nil {
			outcome.PushErr = err
			if putErr := s.Store.Put(*d.Winner, true); putErr != nil {
				return outcome, fmt.Errorf("queue upload for %s: %w", key, putErr)
			}
			s.emit(output.LevelError, output.EventItemFailed, key,
				fmt.Sprintf("[%s] push failed, queued for retry on next pass: %v", key, err), nil)
			return outcome, nil
		}
		if err := s.Store.Put(*d.Winner, false); err != nil {
			return outcome, fmt.Errorf("write local progress for %s: %w", key, err)
		}
		outcome.Pushed = true
		s.emit(output.LevelInfo, output.EventItemPushed, key,
			fmt.Sprintf("[%s] pushed %.1fs to server (%s)", key, d.Winner.Position, d.Reason),
			map[string]any{"position": d.Winner.Position, "finished": d.Winner.Finished})
	}

	return outcome, nil
}

// FlushPending uploads every record still flagged needs_upload. Failed
// uploads stay queued; the count of failures is returned alongside the
// successes.
func (s *Syncer) FlushPending(ctx context.Context) (flushed, failed int, err error) {
	pending, err := s.Store.Pending()
	if err != nil {
		return 0, 0, fmt.Errorf("list pending uploads: %w", err)
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return flushed, failed, ErrInterrupted
		}
		if pushErr := s.Server.PushProgress(ctx, reconcile.Clamp(rec)); pushErr != nil {
			failed++
			s.emit(output.LevelWarn, output.EventItemFailed, rec.Key,
				fmt.Sprintf("[%s] pending upload failed: %v", rec.Key, pushErr), nil)
			continue
		}
		if markErr := s.Store.MarkUploaded(rec.Key, s.now()); markErr != nil {
			return flushed, failed, fmt.Errorf("mark uploaded %s: %w", rec.Key, markErr)
		}
		flushed++
		s.emit(output.LevelInfo, output.EventItemPushed, rec.Key,
			fmt.Sprintf("[%s] flushed pending upload at %.1fs", rec.Key, rec.Position), nil)
	}
	return flushed, failed, nil
}

// SyncAll is the full pass: flush the offline queue, then reconcile
// every known item (or the requested subset). Item failures are counted
// and the pass continues; only cancellation stops it early.
func (s *Syncer) SyncAll(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	result := SyncResult{}

	keys := opts.Keys
	if len(keys) == 0 {
		allKeys, err := s.Store.Keys()
		if err != nil {
			return result, fmt.Errorf("list known items: %w", err)
		}
		keys = allKeys
	}
	result.Total = len(keys)

	s.emit(output.LevelInfo, output.EventSyncStarted, reconcile.Key{},
		fmt.Sprintf("sync started (%d item(s))", result.Total),
		map[string]any{"total": result.Total, "dry_run": opts.DryRun})

	if !opts.DryRun {
		flushed, failed, err := s.FlushPending(ctx)
		result.Flushed = flushed
		result.Failed += failed
		if errors.Is(err, ErrInterrupted) {
			result.Interrupted = true
			return result, ErrInterrupted
		}
		if err != nil {
			return result, err
		}
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			result.Interrupted = true
			s.emit(output.LevelError, output.EventSyncFinished, reconcile.Key{}, "sync interrupted", nil)
			return result, ErrInterrupted
		}

		outcome, err := s.SyncItem(ctx, key, opts.DryRun)
		if err != nil {
			result.Failed++
			s.emit(output.LevelError, output.EventItemFailed, key,
				fmt.Sprintf("[%s] reconcile failed: %v", key, err), nil)
			continue
		}
		if outcome.ServerOffline {
			result.ServerOffline = true
		}
		switch {
		case outcome.PushErr != nil:
			result.Failed++
		case outcome.Pushed && outcome.Pulled:
			result.Pushed++
			result.Pulled++
		case outcome.Pushed:
			result.Pushed++
		case outcome.Pulled:
			result.Pulled++
		default:
			result.InSync++
		}
	}

	s.emit(output.LevelInfo, output.EventSyncFinished, reconcile.Key{},
		fmt.Sprintf("sync finished: flushed=%d pushed=%d pulled=%d in_sync=%d failed=%d",
			result.Flushed, result.Pushed, result.Pulled, result.InSync, result.Failed),
		map[string]any{
			"total":   result.Total,
			"flushed": result.Flushed,
			"pushed":  result.Pushed,
			"pulled":  result.Pulled,
			"in_sync": result.InSync,
			"failed":  result.Failed,
		})

	return result, nil
}
