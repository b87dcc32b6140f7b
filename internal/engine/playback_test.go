package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

func TestOnPlaybackStartResumesFromWinner(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	t0 := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	server := newFakeServer()
	server.records[key] = reconcile.Record{
		Key: key, Position: 1234.5, Duration: 3600, UpdatedAt: t0, Origin: reconcile.OriginServer,
	}

	s, _ := testSyncer(store, server)
	state, err := s.OnPlaybackStart(context.Background(), key, 3600)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Position != 1234.5 || state.Finished {
		t.Fatalf("state = %+v", state)
	}
	if got := store.records[key].Position; got != 1234.5 {
		t.Fatalf("local record not written: %v", got)
	}
}

func TestOnPlaybackStartFinishedRestartsAtZero(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()
	_ = store.Put(reconcile.Record{
		Key:       key,
		Position:  3600,
		Duration:  3600,
		Finished:  true,
		UpdatedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		Origin:    reconcile.OriginLocal,
	}, false)

	s, _ := testSyncer(store, server)
	state, err := s.OnPlaybackStart(context.Background(), key, 3600)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Position != 0 || !state.Finished {
		t.Fatalf("state = %+v, want restart at 0", state)
	}
}

func TestOnPlaybackStartFirstListenCreatesRecord(t *testing.T) {
	key := reconcile.Key{ItemID: "li_new"}
	store := newFakeStore()
	server := newFakeServer()

	s, _ := testSyncer(store, server)
	state, err := s.OnPlaybackStart(context.Background(), key, 2400)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Position != 0 || state.Duration != 2400 {
		t.Fatalf("state = %+v", state)
	}
	rec, ok := store.records[key]
	if !ok {
		t.Fatal("first listen should create a local record")
	}
	if rec.Position != 0 || rec.Duration != 2400 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestOnPlaybackStartServerOfflineUsesLocal(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()
	server.fetchErr = errors.New("no route to host")
	_ = store.Put(localRecord(key, 777, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)), false)

	s, _ := testSyncer(store, server)
	state, err := s.OnPlaybackStart(context.Background(), key, 3600)
	if err != nil {
		t.Fatalf("offline start should not fail: %v", err)
	}
	if state.Position != 777 {
		t.Fatalf("position = %v, want local 777", state.Position)
	}
}

func TestOnPlaybackTickSkipsSmallMovement(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()
	_ = store.Put(localRecord(key, 100, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)), false)

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackTick(context.Background(), key, 103, 3600); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := store.records[key].Position; got != 100 {
		t.Fatalf("position = %v, small movement should be skipped", got)
	}
	if len(server.pushed) != 0 {
		t.Fatalf("pushed = %+v", server.pushed)
	}
}

func TestOnPlaybackTickWritesAndPushes(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()
	_ = store.Put(localRecord(key, 100, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)), false)

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackTick(context.Background(), key, 160, 3600); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := store.records[key].Position; got != 160 {
		t.Fatalf("position = %v", got)
	}
	if len(server.pushed) != 1 || server.pushed[0].Position != 160 {
		t.Fatalf("pushed = %+v", server.pushed)
	}
	if store.pending[key] {
		t.Fatal("successful push should clear the queue flag")
	}
}

func TestOnPlaybackTickPushFailureStaysQueued(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()
	server.pushErr = errors.New("timeout")
	_ = store.Put(localRecord(key, 100, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)), false)

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackTick(context.Background(), key, 160, 3600); err != nil {
		t.Fatalf("push failure must not surface to the player: %v", err)
	}
	if got := store.records[key].Position; got != 160 {
		t.Fatalf("local write must happen regardless: %v", got)
	}
	if !store.pending[key] {
		t.Fatal("record should stay queued after a failed push")
	}
}

func TestOnPlaybackStopMarksFinishedPastThreshold(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackStop(context.Background(), key, 3450, 3600); err != nil {
		t.Fatalf("stop: %v", err)
	}
	rec := store.records[key]
	if !rec.Finished {
		t.Fatalf("3450/3600 = %.3f should be finished at threshold 0.95", 3450.0/3600.0)
	}
	if len(server.pushed) != 1 || !server.pushed[0].Finished {
		t.Fatalf("pushed = %+v", server.pushed)
	}
}

func TestOnPlaybackStopBelowThresholdStaysUnfinished(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackStop(context.Background(), key, 1800, 3600); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if store.records[key].Finished {
		t.Fatal("halfway through should not be finished")
	}
}

func TestOnPlaybackStopClampsPastDuration(t *testing.T) {
	key := reconcile.Key{ItemID: "li_1"}
	store := newFakeStore()
	server := newFakeServer()

	s, _ := testSyncer(store, server)
	if err := s.OnPlaybackStop(context.Background(), key, 3700, 3600); err != nil {
		t.Fatalf("stop: %v", err)
	}
	rec := store.records[key]
	if rec.Position != 3600 {
		t.Fatalf("position = %v, want clamped to duration", rec.Position)
	}
	if !rec.Finished {
		t.Fatal("past the end should be finished")
	}
}
