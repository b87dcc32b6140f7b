package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventSyncStarted      EventName = "sync_started"
	EventItemPushed       EventName = "item_pushed"
	EventItemPulled       EventName = "item_pulled"
	EventItemInSync       EventName = "item_in_sync"
	EventItemFailed       EventName = "item_failed"
	EventSyncFinished     EventName = "sync_finished"
	EventServerOffline    EventName = "server_offline"
	EventDownloadStarted  EventName = "download_started"
	EventDownloadFinished EventName = "download_finished"
	EventDownloadRemoved  EventName = "download_removed"
)

type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	ItemID    string         `json:"item_id,omitempty"`
	EpisodeID string         `json:"episode_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
