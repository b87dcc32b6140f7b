package reconcile

import (
	"testing"
	"time"
)

var (
	t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(90 * time.Second)
)

func localRec(pos float64, finished bool, at time.Time) *Record {
	return &Record{
		Key:       Key{ItemID: "li_abc123"},
		Position:  pos,
		Duration:  3600,
		Finished:  finished,
		UpdatedAt: at,
		Origin:    OriginLocal,
	}
}

func serverRec(pos float64, finished bool, at time.Time) *Record {
	return &Record{
		Key:       Key{ItemID: "li_abc123"},
		Position:  pos,
		Duration:  3600,
		Finished:  finished,
		UpdatedAt: at,
		Origin:    OriginServer,
	}
}

func TestDecideBothAbsent(t *testing.T) {
	d := Decide(nil, nil, DefaultTolerance)
	if d.Winner != nil {
		t.Fatalf("expected no winner, got %+v", d.Winner)
	}
	if !d.NoAction() {
		t.Fatalf("expected no writes, got push=%v write=%v", d.PushServer, d.WriteLocal)
	}
}

func TestDecideLocalOnlyPushesToServer(t *testing.T) {
	d := Decide(localRec(120, false, t0), nil, DefaultTolerance)
	if d.Winner == nil || d.Winner.Origin != OriginLocal {
		t.Fatalf("expected local winner, got %+v", d.Winner)
	}
	if !d.PushServer || d.WriteLocal {
		t.Fatalf("expected push only, got push=%v write=%v", d.PushServer, d.WriteLocal)
	}
	if d.Winner.Position != 120 {
		t.Fatalf("position = %v, want 120", d.Winner.Position)
	}
}

func TestDecideServerOnlyWritesLocal(t *testing.T) {
	d := Decide(nil, serverRec(840, false, t0), DefaultTolerance)
	if d.Winner == nil || d.Winner.Origin != OriginServer {
		t.Fatalf("expected server winner, got %+v", d.Winner)
	}
	if d.PushServer || !d.WriteLocal {
		t.Fatalf("expected local write only, got push=%v write=%v", d.PushServer, d.WriteLocal)
	}
}

func TestDecideLaterTimestampWins(t *testing.T) {
	cases := []struct {
		name   string
		local  *Record
		server *Record
		want   Origin
	}{
		{"local newer", localRec(300, false, t1), serverRec(100, false, t0), OriginLocal},
		{"server newer", localRec(100, false, t0), serverRec(300, false, t1), OriginServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.local, tc.server, DefaultTolerance)
			if d.Winner.Origin != tc.want {
				t.Fatalf("winner = %s, want %s", d.Winner.Origin, tc.want)
			}
			if tc.want == OriginLocal && !d.PushServer {
				t.Fatal("local winner should push to server")
			}
			if tc.want == OriginServer && !d.WriteLocal {
				t.Fatal("server winner should write local")
			}
		})
	}
}

func TestDecideFinishedBreaksTimestampTie(t *testing.T) {
	// local={300s, T0, unfinished}, server={295s, T0, finished}:
	// positions are close but the finished flags disagree, so the
	// server record wins and local gets rewritten.
	d := Decide(localRec(300, false, t0), serverRec(295, true, t0), DefaultTolerance)
	if d.Winner.Origin != OriginServer || !d.Winner.Finished {
		t.Fatalf("expected finished server winner, got %+v", d.Winner)
	}
	if !d.WriteLocal || d.PushServer {
		t.Fatalf("expected local write only, got push=%v write=%v", d.PushServer, d.WriteLocal)
	}
}

func TestDecideWithinToleranceNoWrites(t *testing.T) {
	// Same position, different timestamps: clock-skew jitter, not a
	// divergence worth a network call.
	d := Decide(localRec(100, false, t1), serverRec(100, false, t0), DefaultTolerance)
	if !d.NoAction() {
		t.Fatalf("expected no writes, got push=%v write=%v", d.PushServer, d.WriteLocal)
	}
	if d.Winner == nil || d.Winner.UpdatedAt != t1 {
		t.Fatalf("winner should be the later record, got %+v", d.Winner)
	}
}

func TestDecideToleranceBoundaryIsExclusive(t *testing.T) {
	// A delta of exactly the tolerance is a real divergence.
	d := Decide(localRec(105, false, t1), serverRec(100, false, t0), 5*time.Second)
	if d.NoAction() {
		t.Fatal("delta equal to tolerance should trigger a write")
	}
}

func TestDecideBothFinishedLatestTimestampWins(t *testing.T) {
	d := Decide(localRec(3500, true, t1), serverRec(3400, true, t0), DefaultTolerance)
	if d.Winner.Origin != OriginLocal {
		t.Fatalf("winner = %s, want local", d.Winner.Origin)
	}
	if !d.PushServer {
		t.Fatal("expected push to server")
	}
}

func TestDecideIdempotent(t *testing.T) {
	first := Decide(localRec(300, false, t1), serverRec(100, false, t0), DefaultTolerance)
	if first.NoAction() {
		t.Fatal("setup: expected a divergence")
	}

	// After applying the writes both sides hold the winner.
	l := *first.Winner
	l.Origin = OriginLocal
	s := *first.Winner
	s.Origin = OriginServer
	second := Decide(&l, &s, DefaultTolerance)
	if !second.NoAction() {
		t.Fatalf("second pass should be a no-op, got push=%v write=%v", second.PushServer, second.WriteLocal)
	}
}

func TestDecideClampsOutOfRangeRecords(t *testing.T) {
	local := localRec(-20, false, t1)
	server := serverRec(5000, false, t0) // past the 3600s duration
	d := Decide(local, server, DefaultTolerance)
	if d.Winner.Position != 0 {
		t.Fatalf("winner position = %v, want clamped 0", d.Winner.Position)
	}

	d = Decide(nil, server, DefaultTolerance)
	if d.Winner.Position != 3600 {
		t.Fatalf("lone server position = %v, want clamped 3600", d.Winner.Position)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		name    string
		in      Record
		wantPos float64
	}{
		{"negative position", Record{Position: -3, Duration: 100}, 0},
		{"past duration", Record{Position: 140, Duration: 100}, 100},
		{"unknown duration keeps position", Record{Position: 140, Duration: 0}, 140},
		{"in range untouched", Record{Position: 50, Duration: 100}, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clamp(tc.in); got.Position != tc.wantPos {
				t.Fatalf("Clamp position = %v, want %v", got.Position, tc.wantPos)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	if got := (Key{ItemID: "li_1"}).String(); got != "li_1" {
		t.Fatalf("book key = %q", got)
	}
	if got := (Key{ItemID: "li_1", EpisodeID: "ep_2"}).String(); got != "li_1/ep_2" {
		t.Fatalf("episode key = %q", got)
	}
}
