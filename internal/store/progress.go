package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

// Get returns the local progress record for a media key, or nil when
// none has been written yet.
func (s *Store) Get(key reconcile.Key) (*reconcile.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	row := s.db.QueryRow(`
		SELECT position_seconds, duration_seconds, finished, updated_at
		FROM progress
		WHERE item_id = ? AND episode_id = ?
	`, key.ItemID, key.EpisodeID)

	var (
		position  float64
		duration  float64
		finished  int
		updatedAt int64
	)
	if err := row.Scan(&position, &duration, &finished, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress for %s: %w", key, err)
	}

	return &reconcile.Record{
		Key:       key,
		Position:  position,
		Duration:  duration,
		Finished:  finished != 0,
		UpdatedAt: time.UnixMilli(updatedAt).UTC(),
		Origin:    reconcile.OriginLocal,
	}, nil
}

// Put upserts the single authoritative record for the key. Records
// written from a server pull carry needsUpload=false and stamp
// last_synced_at; locally observed progress is flagged for upload.
func (s *Store) Put(rec reconcile.Record, needsUpload bool) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}

	rec = reconcile.Clamp(rec)
	now := time.Now().UnixMilli()
	var lastSynced, serverPosition any
	if !needsUpload {
		lastSynced = now
		serverPosition = rec.Position
	}

	_, err := s.db.Exec(`
		INSERT INTO progress (item_id, episode_id, position_seconds, duration_seconds, finished, updated_at, needs_upload, server_position, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, episode_id) DO UPDATE SET
			position_seconds=excluded.position_seconds,
			duration_seconds=excluded.duration_seconds,
			finished=excluded.finished,
			updated_at=excluded.updated_at,
			needs_upload=excluded.needs_upload,
			server_position=COALESCE(excluded.server_position, progress.server_position),
			last_synced_at=COALESCE(excluded.last_synced_at, progress.last_synced_at)
	`,
		rec.ItemID,
		rec.EpisodeID,
		rec.Position,
		rec.Duration,
		boolToInt(rec.Finished),
		rec.UpdatedAt.UnixMilli(),
		boolToInt(needsUpload),
		serverPosition,
		lastSynced,
	)
	if err != nil {
		return fmt.Errorf("write progress for %s: %w", rec.Key, err)
	}
	return nil
}

// Delete removes the record for a key. Only the download-removal path
// calls this; reconciliation never deletes.
func (s *Store) Delete(key reconcile.Key) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}
	_, err := s.db.Exec(`DELETE FROM progress WHERE item_id = ? AND episode_id = ?`, key.ItemID, key.EpisodeID)
	if err != nil {
		return fmt.Errorf("delete progress for %s: %w", key, err)
	}
	return nil
}

// Keys lists every media key with a local record, most recent first.
func (s *Store) Keys() ([]reconcile.Key, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	rows, err := s.db.Query(`SELECT item_id, episode_id FROM progress ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []reconcile.Key
	for rows.Next() {
		var key reconcile.Key
		if err := rows.Scan(&key.ItemID, &key.EpisodeID); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Pending returns records still flagged for upload, oldest first so a
// flush replays offline listening in order.
func (s *Store) Pending() ([]reconcile.Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	rows, err := s.db.Query(`
		SELECT item_id, episode_id, position_seconds, duration_seconds, finished, updated_at
		FROM progress
		WHERE needs_upload = 1
		ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []reconcile.Record
	for rows.Next() {
		var (
			rec       reconcile.Record
			finished  int
			updatedAt int64
		)
		if err := rows.Scan(&rec.ItemID, &rec.EpisodeID, &rec.Position, &rec.Duration, &finished, &updatedAt); err != nil {
			return nil, err
		}
		rec.Finished = finished != 0
		rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		rec.Origin = reconcile.OriginLocal
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkUploaded clears the upload flag after a successful push.
func (s *Store) MarkUploaded(key reconcile.Key, at time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}
	_, err := s.db.Exec(`
		UPDATE progress
		SET needs_upload = 0, last_synced_at = ?, server_position = position_seconds
		WHERE item_id = ? AND episode_id = ?
	`, at.UnixMilli(), key.ItemID, key.EpisodeID)
	if err != nil {
		return fmt.Errorf("mark uploaded %s: %w", key, err)
	}
	return nil
}

// Summary is what `shelfsync status` prints per record.
type Summary struct {
	Key          reconcile.Key
	Position     float64
	Duration     float64
	Finished     bool
	UpdatedAt    time.Time
	NeedsUpload  bool
	LastSyncedAt time.Time
}

func (s *Store) Summaries() ([]Summary, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	rows, err := s.db.Query(`
		SELECT item_id, episode_id, position_seconds, duration_seconds, finished, updated_at, needs_upload, last_synced_at
		FROM progress
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			sum        Summary
			finished   int
			updatedAt  int64
			needs      int
			lastSynced sql.NullInt64
		)
		if err := rows.Scan(&sum.Key.ItemID, &sum.Key.EpisodeID, &sum.Position, &sum.Duration, &finished, &updatedAt, &needs, &lastSynced); err != nil {
			return nil, err
		}
		sum.Finished = finished != 0
		sum.NeedsUpload = needs != 0
		sum.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		if lastSynced.Valid {
			sum.LastSyncedAt = time.UnixMilli(lastSynced.Int64).UTC()
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
