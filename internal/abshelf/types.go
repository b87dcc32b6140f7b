package abshelf

// Wire types mirror the Audiobookshelf API field names. Timestamps are
// unix milliseconds throughout.

type User struct {
	ID            string          `json:"id"`
	Username      string          `json:"username"`
	MediaProgress []MediaProgress `json:"mediaProgress"`
}

type MediaProgress struct {
	ID            string  `json:"id"`
	LibraryItemID string  `json:"libraryItemId"`
	EpisodeID     string  `json:"episodeId,omitempty"`
	IsFinished    bool    `json:"isFinished"`
	Progress      float64 `json:"progress"`
	CurrentTime   float64 `json:"currentTime"`
	Duration      float64 `json:"duration"`
	StartedAt     int64   `json:"startedAt"`
	FinishedAt    int64   `json:"finishedAt"`
	LastUpdate    int64   `json:"lastUpdate"`
}

type ProgressUpdate struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Progress    float64 `json:"progress"`
	IsFinished  bool    `json:"isFinished"`
}

type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

type librariesResponse struct {
	Libraries []Library `json:"libraries"`
}

type LibraryItem struct {
	ID        string `json:"id"`
	MediaType string `json:"mediaType"`
	Media     Media  `json:"media"`
}

type Media struct {
	Metadata   Metadata    `json:"metadata"`
	Duration   float64     `json:"duration"`
	AudioFiles []AudioFile `json:"audioFiles"`
	Episodes   []Episode   `json:"episodes"`
	Tracks     []Track     `json:"tracks"`
}

type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"authorName"`
}

type AudioFile struct {
	Index    int      `json:"index"`
	Ino      string   `json:"ino"`
	Metadata FileMeta `json:"metadata"`
}

type FileMeta struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type Episode struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	AudioFile *AudioFile `json:"audioFile"`
}

type Track struct {
	Index      int    `json:"index"`
	ContentURL string `json:"contentUrl"`
}

type PlaybackSession struct {
	ID            string  `json:"id"`
	LibraryItemID string  `json:"libraryItemId"`
	EpisodeID     string  `json:"episodeId,omitempty"`
	CurrentTime   float64 `json:"currentTime"`
	Duration      float64 `json:"duration"`
}

type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	ClientName string `json:"clientName"`
}
