package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/reconcile"
)

func newPlayedCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "played",
		Short: "Record playback events from an external player",
	}
	cmd.AddCommand(newPlayedStartCommand(app))
	cmd.AddCommand(newPlayedTickCommand(app))
	cmd.AddCommand(newPlayedStopCommand(app))
	return cmd
}

func newPlayedStartCommand(app *AppContext) *cobra.Command {
	var episodeID string
	var duration float64
	var openSession bool

	cmd := &cobra.Command{
		Use:   "start ITEM",
		Short: "Reconcile an item at playback start and report the resume position",
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

			client := newServerClient(cfg)
			syncer := newSyncer(cfg, st, client, newEmitter(app))

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}
			state, err := syncer.OnPlaybackStart(ctx, key, duration)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			payload := map[string]any{
				"item_id":    key.ItemID,
				"episode_id": key.EpisodeID,
				"position":   state.Position,
				"duration":   state.Duration,
				"finished":   state.Finished,
			}

			if openSession {
				id, idErr := deviceID(st)
				if idErr != nil {
					return withExitCode(exitcode.RuntimeFailure, idErr)
				}
				session, sessionErr := client.OpenSession(ctx, key.ItemID, key.EpisodeID, deviceInfo(id))
				if sessionErr != nil {
					// Listening stats are best effort; progress sync
					// carries on without a session.
					fmt.Fprintf(app.IO.ErrOut, "WARN: could not open playback session: %v\n", sessionErr)
				} else {
					payload["session_id"] = session.ID
				}
			}

			if app.Opts.JSON {
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
				return nil
			}
			if state.Finished {
				fmt.Fprintf(app.IO.Out, "%s is finished; starting over at 0:00\n", key)
			} else {
				fmt.Fprintf(app.IO.Out, "%s resumes at %s\n", key, formatPosition(state.Position))
			}
			if sessionID, ok := payload["session_id"]; ok {
				fmt.Fprintf(app.IO.Out, "session: %s\n", sessionID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Known media duration in seconds")
	cmd.Flags().BoolVar(&openSession, "session", false, "Open a server playback session for listening stats")
	return cmd
}

func newPlayedTickCommand(app *AppContext) *cobra.Command {
	var episodeID string
	var position, duration, listened float64
	var sessionID string

	cmd := &cobra.Command{
		Use:   "tick ITEM",
		Short: "Record an in-flight playback position",
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

			client := newServerClient(cfg)
			syncer := newSyncer(cfg, st, client, newEmitter(app))

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}
			if err := syncer.OnPlaybackTick(ctx, key, position, duration); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if sessionID != "" {
				if err := client.SyncSession(ctx, sessionID, position, duration, listened); err != nil {
					fmt.Fprintf(app.IO.ErrOut, "WARN: session sync failed: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	cmd.Flags().Float64Var(&position, "position", 0, "Current position in seconds")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Media duration in seconds")
	cmd.Flags().Float64Var(&listened, "listened", 0, "Seconds listened since the last tick")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Server playback session to report against")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func newPlayedStopCommand(app *AppContext) *cobra.Command {
	var episodeID string
	var position, duration float64
	var sessionID string

	cmd := &cobra.Command{
		Use:   "stop ITEM",
		Short: "Record the final playback position and close the session",
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

			client := newServerClient(cfg)
			syncer := newSyncer(cfg, st, client, newEmitter(app))

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}
			if err := syncer.OnPlaybackStop(ctx, key, position, duration); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if sessionID != "" {
				if err := client.CloseSession(ctx, sessionID); err != nil {
					fmt.Fprintf(app.IO.ErrOut, "WARN: session close failed: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	cmd.Flags().Float64Var(&position, "position", 0, "Final position in seconds")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Media duration in seconds")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Server playback session to close")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}
