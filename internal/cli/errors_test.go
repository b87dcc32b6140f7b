package cli

import (
	"errors"
	"testing"

	"github.com/jaa/shelfsync/internal/exitcode"
)

func TestMapExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcode.Success},
		{name: "coded", err: &ExitError{Code: exitcode.InvalidConfig, Err: errors.New("bad")}, want: exitcode.InvalidConfig},
		{name: "unreachable", err: &ExitError{Code: exitcode.ServerUnreachable, Err: errors.New("down")}, want: exitcode.ServerUnreachable},
		{name: "unknown command", err: errors.New("unknown command \"x\" for \"shelfsync\""), want: exitcode.InvalidUsage},
		{name: "generic", err: errors.New("boom"), want: exitcode.RuntimeFailure},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapExitCode(tc.err); got != tc.want {
				t.Fatalf("mapExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestParseItemKeys(t *testing.T) {
	keys, err := parseItemKeys([]string{"li_1", "li_2/ep_9", " "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %+v", keys)
	}
	if keys[0].ItemID != "li_1" || keys[0].EpisodeID != "" {
		t.Fatalf("first key = %+v", keys[0])
	}
	if keys[1].ItemID != "li_2" || keys[1].EpisodeID != "ep_9" {
		t.Fatalf("second key = %+v", keys[1])
	}

	if _, err := parseItemKeys([]string{"/ep_9"}); err == nil {
		t.Fatal("empty item id should error")
	}
}
