package abshelf

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", ClientOptions{Timeout: 2 * time.Second, RateLimitPerSecond: 1000})
}

func TestFetchProgressMapsWireFields(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/me/progress/li_1/ep_2" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(MediaProgress{
			LibraryItemID: "li_1",
			EpisodeID:     "ep_2",
			CurrentTime:   431.2,
			Duration:      2400,
			IsFinished:    true,
			LastUpdate:    1764576000000,
		})
	}))

	rec, err := c.FetchProgress(context.Background(), reconcile.Key{ItemID: "li_1", EpisodeID: "ep_2"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Position != 431.2 || rec.Duration != 2400 || !rec.Finished {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if rec.Origin != reconcile.OriginServer {
		t.Fatalf("origin = %s", rec.Origin)
	}
	if want := time.UnixMilli(1764576000000).UTC(); !rec.UpdatedAt.Equal(want) {
		t.Fatalf("updated_at = %v, want %v", rec.UpdatedAt, want)
	}
}

func TestFetchProgressNotFoundIsAbsent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	rec, err := c.FetchProgress(context.Background(), reconcile.Key{ItemID: "li_new"})
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected absent record, got %+v", rec)
	}
}

func TestPushProgressPatchesUpdate(t *testing.T) {
	var got ProgressUpdate
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/api/me/progress/li_1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		// Audiobookshelf answers progress PATCHes with an empty 200.
		w.WriteHeader(http.StatusOK)
	}))

	rec := reconcile.Record{
		Key:      reconcile.Key{ItemID: "li_1"},
		Position: 120,
		Duration: 480,
		Finished: false,
	}
	if err := c.PushProgress(context.Background(), rec); err != nil {
		t.Fatalf("push: %v", err)
	}
	if got.CurrentTime != 120 || got.Duration != 480 {
		t.Fatalf("update body = %+v", got)
	}
	if got.Progress != 0.25 {
		t.Fatalf("progress = %v, want 0.25", got.Progress)
	}
}

func TestPushProgressServerError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	err := c.PushProgress(context.Background(), reconcile.Record{Key: reconcile.Key{ItemID: "li_1"}})
	if err == nil {
		t.Fatal("expected error on 500")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
}

func TestResolveAudioFile(t *testing.T) {
	item := &LibraryItem{
		ID: "li_1",
		Media: Media{
			AudioFiles: []AudioFile{
				{Index: 2, Ino: "ino-2", Metadata: FileMeta{Filename: "part2.mp3"}},
				{Index: 1, Ino: "ino-1", Metadata: FileMeta{Filename: "part1.mp3"}},
			},
			Episodes: []Episode{
				{ID: "ep_1", AudioFile: &AudioFile{Ino: "ino-ep", Metadata: FileMeta{Filename: "ep.mp3"}}},
				{ID: "ep_2"},
			},
		},
	}

	f, err := ResolveAudioFile(item, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if f.Ino != "ino-1" {
		t.Fatalf("book file = %s, want lowest index", f.Ino)
	}

	f, err = ResolveAudioFile(item, "ep_1")
	if err != nil {
		t.Fatalf("episode: %v", err)
	}
	if f.Ino != "ino-ep" {
		t.Fatalf("episode file = %s", f.Ino)
	}

	if _, err := ResolveAudioFile(item, "ep_2"); err == nil {
		t.Fatal("episode without audio file should error")
	}
	if _, err := ResolveAudioFile(item, "ep_missing"); err == nil {
		t.Fatal("missing episode should error")
	}
}

func TestDownloadFileWritesThroughTempFile(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "test-token" {
			t.Errorf("missing token in query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("audio-bytes"))
	}))

	dest := filepath.Join(t.TempDir(), "li_1", "book.m4b")
	n, err := c.DownloadFile(context.Background(), "li_1", "ino-1", dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len("audio-bytes")) {
		t.Fatalf("written = %d", n)
	}
	payload, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(payload) != "audio-bytes" {
		t.Fatalf("dest content = %q", payload)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}
