package abshelf

import (
	"context"
	"net/http"
)

type sessionRequest struct {
	LibraryItemID string     `json:"libraryItemId"`
	EpisodeID     string     `json:"episodeId,omitempty"`
	MediaPlayer   string     `json:"mediaPlayer"`
	DeviceInfo    DeviceInfo `json:"deviceInfo"`
}

type sessionSyncRequest struct {
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	TimeListened float64 `json:"timeListened"`
}

// OpenSession registers a local playback session so the server's
// listening stats line up with what this device played.
func (c *Client) OpenSession(ctx context.Context, itemID, episodeID string, device DeviceInfo) (*PlaybackSession, error) {
	var session PlaybackSession
	req := sessionRequest{
		LibraryItemID: itemID,
		EpisodeID:     episodeID,
		MediaPlayer:   "shelfsync",
		DeviceInfo:    device,
	}
	if err := c.do(ctx, http.MethodPost, "/api/session/local", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) SyncSession(ctx context.Context, sessionID string, currentTime, duration, timeListened float64) error {
	req := sessionSyncRequest{
		CurrentTime:  currentTime,
		Duration:     duration,
		TimeListened: timeListened,
	}
	return c.do(ctx, http.MethodPost, "/api/session/local/"+sessionID+"/sync", req, nil)
}

func (c *Client) CloseSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/session/local/"+sessionID+"/close", nil, nil)
}
