package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/reconcile"
)

func newResumeCommand(app *AppContext) *cobra.Command {
	var episodeID string
	var duration float64

	cmd := &cobra.Command{
		Use:   "resume ITEM",
		Short: "Reconcile one item and print where playback should resume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.ValidateOnline(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			st, err := openStore(cfg)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer st.Close()

			syncer := newSyncer(cfg, st, newServerClient(cfg), newEmitter(app))

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}
			state, err := syncer.OnPlaybackStart(ctx, key, duration)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"item_id":    key.ItemID,
					"episode_id": key.EpisodeID,
					"position":   state.Position,
					"duration":   state.Duration,
					"finished":   state.Finished,
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}

			if state.Finished {
				fmt.Fprintf(app.IO.Out, "%s is finished; playback restarts from the beginning\n", key)
				return nil
			}
			fmt.Fprintf(app.IO.Out, "%s resumes at %s", key, formatPosition(state.Position))
			if state.Duration > 0 {
				fmt.Fprintf(app.IO.Out, " of %s", formatPosition(state.Duration))
			}
			fmt.Fprintln(app.IO.Out)
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Known media duration in seconds")
	return cmd
}

func formatPosition(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
