// Package reconcile resolves a locally recorded playback position and a
// server-reported one into a single authoritative record, and says which
// side needs to be rewritten to converge.
package reconcile

import (
	"fmt"
	"math"
	"time"
)

// DefaultTolerance is the position delta below which two records are
// considered already in sync. Clock skew between Kodi boxes and the
// server makes smaller deltas meaningless.
const DefaultTolerance = 5 * time.Second

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginServer Origin = "server"
)

// Key identifies a media item. EpisodeID is empty for audiobooks and
// set for podcast episodes.
type Key struct {
	ItemID    string
	EpisodeID string
}

func (k Key) String() string {
	if k.EpisodeID == "" {
		return k.ItemID
	}
	return k.ItemID + "/" + k.EpisodeID
}

// Record is one observation of playback progress for a media item.
type Record struct {
	Key
	Position  float64 // seconds
	Duration  float64 // seconds, 0 when unknown
	Finished  bool
	UpdatedAt time.Time
	Origin    Origin
}

// Clamp forces Position into [0, Duration] so malformed records never
// propagate. A zero Duration leaves the upper bound open.
func Clamp(r Record) Record {
	if r.Position < 0 || math.IsNaN(r.Position) {
		r.Position = 0
	}
	if r.Duration < 0 || math.IsNaN(r.Duration) {
		r.Duration = 0
	}
	if r.Duration > 0 && r.Position > r.Duration {
		r.Position = r.Duration
	}
	return r
}

// Decision is the outcome of one reconciliation: the record to treat as
// current plus the writes needed to converge both sides on it. Applying
// the writes is the caller's job; a failed push is reported, not
// retried here.
type Decision struct {
	Winner     *Record
	PushServer bool
	WriteLocal bool
	Reason     string
}

// NoAction reports whether the two sides were already consistent.
func (d Decision) NoAction() bool {
	return !d.PushServer && !d.WriteLocal
}

// Decide compares a local and a server record for the same media item
// and picks the authoritative one.
//
// Policy: a lone record is adopted and propagated; otherwise the later
// UpdatedAt wins, with exact ties broken in favor of the side marked
// finished (and in favor of the server when that too is equal).
// Positions within tolerance with matching finished flags are treated
// as already consistent and produce no writes.
//
// Decide performs no I/O and is idempotent: feeding its winner back in
// on both sides yields NoAction.
func Decide(local, server *Record, tolerance time.Duration) Decision {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	switch {
	case local == nil && server == nil:
		return Decision{Reason: "no progress on either side"}
	case server == nil:
		w := Clamp(*local)
		return Decision{Winner: &w, PushServer: true, Reason: "server has no record"}
	case local == nil:
		w := Clamp(*server)
		return Decision{Winner: &w, WriteLocal: true, Reason: "local has no record"}
	}

	l := Clamp(*local)
	s := Clamp(*server)

	if l.Finished == s.Finished && math.Abs(l.Position-s.Position) < tolerance.Seconds() {
		w := laterOf(l, s)
		return Decision{Winner: &w, Reason: fmt.Sprintf("positions within %s", tolerance)}
	}

	w := laterOf(l, s)
	d := Decision{Winner: &w}
	if w.Origin == OriginLocal {
		d.PushServer = true
		d.Reason = "local record is newer"
	} else {
		d.WriteLocal = true
		d.Reason = "server record is newer"
	}
	if l.UpdatedAt.Equal(s.UpdatedAt) {
		d.Reason = "timestamp tie, finished side wins"
	}
	return d
}

// laterOf picks the record with the later timestamp. On an exact tie
// the finished side wins; a tie on that as well falls to the server,
// the side every other client converges on.
func laterOf(l, s Record) Record {
	switch {
	case l.UpdatedAt.After(s.UpdatedAt):
		return l
	case s.UpdatedAt.After(l.UpdatedAt):
		return s
	case l.Finished != s.Finished:
		if l.Finished {
			return l
		}
		return s
	default:
		return s
	}
}
