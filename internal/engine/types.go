package engine

import (
	"context"
	"time"

	"github.com/jaa/shelfsync/internal/reconcile"
)

// Store is the local progress store the syncer reads and writes.
// *store.Store satisfies it; tests use in-memory fakes.
type Store interface {
	Get(key reconcile.Key) (*reconcile.Record, error)
	Put(rec reconcile.Record, needsUpload bool) error
	Keys() ([]reconcile.Key, error)
	Pending() ([]reconcile.Record, error)
	MarkUploaded(key reconcile.Key, at time.Time) error
}

// Server is the remote progress endpoint. *abshelf.Client satisfies it.
type Server interface {
	FetchProgress(ctx context.Context, key reconcile.Key) (*reconcile.Record, error)
	PushProgress(ctx context.Context, rec reconcile.Record) error
}

type SyncOptions struct {
	Keys   []reconcile.Key
	DryRun bool
}

type SyncResult struct {
	Total         int
	Flushed       int
	Pushed        int
	Pulled        int
	InSync        int
	Failed        int
	ServerOffline bool
	Interrupted   bool
}

// ItemOutcome reports what one reconciliation did for one media key.
type ItemOutcome struct {
	Decision      reconcile.Decision
	Pushed        bool
	Pulled        bool
	ServerOffline bool
	PushErr       error
}

// ResumeState is the answer to "where should playback start".
type ResumeState struct {
	Position float64
	Duration float64
	Finished bool
}
