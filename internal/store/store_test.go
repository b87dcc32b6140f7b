package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "progress.db"), Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.Get(reconcile.Key{ItemID: "li_none"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	in := reconcile.Record{
		Key:       reconcile.Key{ItemID: "li_1", EpisodeID: "ep_9"},
		Position:  421.5,
		Duration:  1800,
		Finished:  false,
		UpdatedAt: at,
	}
	if err := s.Put(in, true); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := s.Get(in.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out == nil {
		t.Fatal("expected record")
	}
	if out.Position != 421.5 || out.Duration != 1800 || out.Finished {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out.UpdatedAt.Equal(at) {
		t.Fatalf("updated_at = %v, want %v", out.UpdatedAt, at)
	}
	if out.Origin != reconcile.OriginLocal {
		t.Fatalf("origin = %s", out.Origin)
	}
}

func TestPutUpsertsSingleRow(t *testing.T) {
	s := openTestStore(t)
	key := reconcile.Key{ItemID: "li_1"}

	if err := s.Put(reconcile.Record{Key: key, Position: 10, Duration: 100, UpdatedAt: time.Now()}, true); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.Put(reconcile.Record{Key: key, Position: 20, Duration: 100, UpdatedAt: time.Now()}, true); err != nil {
		t.Fatalf("second put: %v", err)
	}

	keys, err := s.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected one authoritative row, got %d", len(keys))
	}
	rec, _ := s.Get(key)
	if rec.Position != 20 {
		t.Fatalf("position = %v, want 20", rec.Position)
	}
}

func TestPutClampsPosition(t *testing.T) {
	s := openTestStore(t)
	key := reconcile.Key{ItemID: "li_1"}

	if err := s.Put(reconcile.Record{Key: key, Position: 500, Duration: 100, UpdatedAt: time.Now()}, true); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Position != 100 {
		t.Fatalf("position = %v, want clamped 100", rec.Position)
	}
}

func TestPendingAndMarkUploaded(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	older := reconcile.Record{Key: reconcile.Key{ItemID: "li_old"}, Position: 5, Duration: 100, UpdatedAt: now.Add(-time.Hour)}
	newer := reconcile.Record{Key: reconcile.Key{ItemID: "li_new"}, Position: 9, Duration: 100, UpdatedAt: now}
	synced := reconcile.Record{Key: reconcile.Key{ItemID: "li_synced"}, Position: 7, Duration: 100, UpdatedAt: now}

	if err := s.Put(older, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(newer, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(synced, false); err != nil {
		t.Fatal(err)
	}

	pending, err := s.Pending()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ItemID != "li_old" {
		t.Fatalf("pending order: got %s first, want oldest", pending[0].ItemID)
	}

	if err := s.MarkUploaded(older.Key, now); err != nil {
		t.Fatalf("mark uploaded: %v", err)
	}
	pending, err = s.Pending()
	if err != nil {
		t.Fatalf("pending after mark: %v", err)
	}
	if len(pending) != 1 || pending[0].ItemID != "li_new" {
		t.Fatalf("pending after mark = %+v", pending)
	}
}

func TestRemoveDownloadDeletesProgress(t *testing.T) {
	s := openTestStore(t)
	key := reconcile.Key{ItemID: "li_1"}

	if err := s.Put(reconcile.Record{Key: key, Position: 50, Duration: 100, UpdatedAt: time.Now()}, true); err != nil {
		t.Fatal(err)
	}
	if err := s.PutDownload(Download{Key: key, Path: "/tmp/li_1/book.m4b", SizeBytes: 4096, DownloadedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveDownload(key); err != nil {
		t.Fatalf("remove download: %v", err)
	}

	if d, _ := s.GetDownload(key); d != nil {
		t.Fatalf("download still present: %+v", d)
	}
	if rec, _ := s.Get(key); rec != nil {
		t.Fatalf("progress should be deleted with the download, got %+v", rec)
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if v, err := s.StateGet(StateDeviceID); err != nil || v != "" {
		t.Fatalf("empty state = %q, %v", v, err)
	}
	if err := s.StateSet(StateDeviceID, "dev-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.StateSet(StateDeviceID, "dev-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := s.StateGet(StateDeviceID); v != "dev-2" {
		t.Fatalf("state = %q, want dev-2", v)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.db")

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.Put(reconcile.Record{Key: reconcile.Key{ItemID: "li_1"}, Position: 1, Duration: 10, UpdatedAt: time.Now()}, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	rec, err := s2.Get(reconcile.Key{ItemID: "li_1"})
	if err != nil || rec == nil {
		t.Fatalf("record lost across reopen: %v %v", rec, err)
	}
}
