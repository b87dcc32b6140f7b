package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

type Download struct {
	Key          reconcile.Key
	Path         string
	SizeBytes    int64
	DownloadedAt time.Time
}

func (s *Store) PutDownload(d Download) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}
	_, err := s.db.Exec(`
		INSERT INTO downloads (item_id, episode_id, path, size_bytes, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id, episode_id) DO UPDATE SET
			path=excluded.path,
			size_bytes=excluded.size_bytes,
			downloaded_at=excluded.downloaded_at
	`, d.Key.ItemID, d.Key.EpisodeID, d.Path, d.SizeBytes, d.DownloadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record download %s: %w", d.Key, err)
	}
	return nil
}

func (s *Store) GetDownload(key reconcile.Key) (*Download, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	row := s.db.QueryRow(`
		SELECT path, size_bytes, downloaded_at
		FROM downloads
		WHERE item_id = ? AND episode_id = ?
	`, key.ItemID, key.EpisodeID)

	d := Download{Key: key}
	var downloadedAt int64
	if err := row.Scan(&d.Path, &d.SizeBytes, &downloadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read download %s: %w", key, err)
	}
	d.DownloadedAt = time.UnixMilli(downloadedAt).UTC()
	return &d, nil
}

func (s *Store) Downloads() ([]Download, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store: missing database connection")
	}

	rows, err := s.db.Query(`
		SELECT item_id, episode_id, path, size_bytes, downloaded_at
		FROM downloads
		ORDER BY downloaded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var downloads []Download
	for rows.Next() {
		var (
			d            Download
			downloadedAt int64
		)
		if err := rows.Scan(&d.Key.ItemID, &d.Key.EpisodeID, &d.Path, &d.SizeBytes, &downloadedAt); err != nil {
			return nil, err
		}
		d.DownloadedAt = time.UnixMilli(downloadedAt).UTC()
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// RemoveDownload drops the download row and the progress record for the
// key in one transaction: removing a downloaded item is the only event
// that deletes progress.
func (s *Store) RemoveDownload(key reconcile.Key) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM downloads WHERE item_id = ? AND episode_id = ?`, key.ItemID, key.EpisodeID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("remove download %s: %w", key, err)
	}
	if _, err := tx.Exec(`DELETE FROM progress WHERE item_id = ? AND episode_id = ?`, key.ItemID, key.EpisodeID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("remove progress %s: %w", key, err)
	}
	return tx.Commit()
}
