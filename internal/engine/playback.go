package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/jaa/shelfsync/internal/output"
	"github.com/jaa/shelfsync/internal/reconcile"
)

// OnPlaybackStart reconciles the item and answers where playback should
// resume. A finished item restarts from the top. Server trouble never
// blocks the start of playback; the local record carries the session.
func (s *Syncer) OnPlaybackStart(ctx context.Context, key reconcile.Key, knownDuration float64) (ResumeState, error) {
	outcome, err := s.SyncItem(ctx, key, false)
	if err != nil {
		return ResumeState{Duration: knownDuration}, err
	}

	winner := outcome.Decision.Winner
	if winner == nil {
		// First listen: create the local record at zero so the item
		// is known to subsequent sync passes.
		rec := reconcile.Record{
			Key:       key,
			Position:  0,
			Duration:  knownDuration,
			UpdatedAt: s.now(),
			Origin:    reconcile.OriginLocal,
		}
		if err := s.Store.Put(rec, true); err != nil {
			return ResumeState{Duration: knownDuration}, err
		}
		return ResumeState{Duration: knownDuration}, nil
	}

	duration := math.Max(knownDuration, winner.Duration)
	if winner.Finished {
		return ResumeState{Position: 0, Duration: duration, Finished: true}, nil
	}
	return ResumeState{Position: winner.Position, Duration: duration}, nil
}

// OnPlaybackTick records progress while playing. Writes are bounded:
// a position that moved less than the tolerance since the last record
// is skipped entirely, so steady playback produces one local write and
// at most one push per interval, and clock jitter produces none.
func (s *Syncer) OnPlaybackTick(ctx context.Context, key reconcile.Key, position, duration float64) error {
	current, err := s.Store.Get(key)
	if err != nil {
		return fmt.Errorf("read local progress for %s: %w", key, err)
	}
	if current != nil && !current.Finished && math.Abs(current.Position-position) < s.Tolerance.Seconds() {
		return nil
	}

	rec := reconcile.Record{
		Key:       key,
		Position:  position,
		Duration:  duration,
		UpdatedAt: s.now(),
		Origin:    reconcile.OriginLocal,
	}
	return s.saveAndPush(ctx, rec)
}

// OnPlaybackStop is the final write for a session. Positions at or past
// the finished threshold mark the record finished, mirroring how the
// server flips isFinished when a book runs to the end credits.
func (s *Syncer) OnPlaybackStop(ctx context.Context, key reconcile.Key, position, duration float64) error {
	rec := reconcile.Record{
		Key:       key,
		Position:  position,
		Duration:  duration,
		UpdatedAt: s.now(),
		Origin:    reconcile.OriginLocal,
	}
	if duration > 0 && position/duration >= s.FinishedThreshold {
		rec.Finished = true
	}
	return s.saveAndPush(ctx, rec)
}

// saveAndPush writes locally first, then pushes opportunistically. The
// local write is the one that must not fail; a push failure just leaves
// the record queued.
func (s *Syncer) saveAndPush(ctx context.Context, rec reconcile.Record) error {
	rec = reconcile.Clamp(rec)
	if err := s.Store.Put(rec, true); err != nil {
		return fmt.Errorf("write local progress for %s: %w", rec.Key, err)
	}

	if err := s.Server.PushProgress(ctx, rec); err != nil {
		s.emit(output.LevelWarn, output.EventItemFailed, rec.Key,
			fmt.Sprintf("[%s] push failed, progress kept locally: %v", rec.Key, err), nil)
		return nil
	}
	if err := s.Store.MarkUploaded(rec.Key, s.now()); err != nil {
		return fmt.Errorf("mark uploaded %s: %w", rec.Key, err)
	}
	s.emit(output.LevelInfo, output.EventItemPushed, rec.Key,
		fmt.Sprintf("[%s] saved %.1fs (finished=%v)", rec.Key, rec.Position, rec.Finished),
		map[string]any{"position": rec.Position, "finished": rec.Finished})
	return nil
}
