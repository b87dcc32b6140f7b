package abshelf

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	var resp librariesResponse
	if err := c.do(ctx, http.MethodGet, "/api/libraries", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Libraries, nil
}

func (c *Client) Item(ctx context.Context, itemID string) (*LibraryItem, error) {
	var item LibraryItem
	if err := c.do(ctx, http.MethodGet, "/api/items/"+itemID+"?expanded=1", nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ResolveAudioFile picks the audio file to download for an item or one
// of its episodes: the lowest-index file for a book, the episode's own
// file for a podcast.
func ResolveAudioFile(item *LibraryItem, episodeID string) (*AudioFile, error) {
	if episodeID != "" {
		for _, ep := range item.Media.Episodes {
			if ep.ID != episodeID {
				continue
			}
			if ep.AudioFile == nil || ep.AudioFile.Ino == "" {
				return nil, fmt.Errorf("episode %s has no audio file on the server", episodeID)
			}
			return ep.AudioFile, nil
		}
		return nil, fmt.Errorf("episode %s not found in item %s", episodeID, item.ID)
	}

	if len(item.Media.AudioFiles) == 0 {
		return nil, fmt.Errorf("item %s has no audio files", item.ID)
	}
	files := make([]AudioFile, len(item.Media.AudioFiles))
	copy(files, item.Media.AudioFiles)
	sort.Slice(files, func(i, j int) bool { return files[i].Index < files[j].Index })
	if files[0].Ino == "" {
		return nil, fmt.Errorf("item %s audio file has no inode", item.ID)
	}
	return &files[0], nil
}

// FileURL builds the direct file URL for an item's audio file inode.
// The token rides in the query string because Kodi-style players fetch
// these URLs without headers.
func (c *Client) FileURL(itemID, ino string) string {
	return fmt.Sprintf("%s/api/items/%s/file/%s?token=%s", c.baseURL, itemID, ino, c.token)
}

// DownloadFile streams an item's audio file to dest, writing through a
// temp file so an interrupted transfer never leaves a half-written
// download behind.
func (c *Client) DownloadFile(ctx context.Context, itemID, ino, dest string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(itemID, ino), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", itemID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("download %s: %w", itemID, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return written, nil
}
