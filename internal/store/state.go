package store

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	StateLastFullSync = "last_full_sync"
	StateDeviceID     = "device_id"
)

func (s *Store) StateGet(key string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store: missing database connection")
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read sync state %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) StateSet(key, value string) error {
	if s == nil || s.db == nil {
		return errors.New("store: missing database connection")
	}
	_, err := s.db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write sync state %q: %w", key, err)
	}
	return nil
}
