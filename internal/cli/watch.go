package cli

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/engine"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/output"
	"github.com/jaa/shelfsync/internal/store"
)

func newWatchCommand(app *AppContext) *cobra.Command {
	var interval time.Duration
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run as a daemon, reconciling on an interval until interrupted",
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

			logger, closeLog, err := newWatchLogger(app, cfg)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer closeLog()

			emitter := output.NewMultiEmitter(newEmitter(app), newLogEmitter(logger))
			syncer := newSyncer(cfg, st, newServerClient(cfg), emitter)

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			if interval <= 0 {
				interval = time.Duration(cfg.Sync.IntervalSeconds) * time.Second
			}
			serverPoll := time.Duration(cfg.Sync.ServerPollSeconds) * time.Second

			logger.Info().
				Dur("interval", interval).
				Dur("server_poll", serverPoll).
				Str("server", cfg.Server.BaseURL).
				Msg("watch started")

			runPass := func(full bool) error {
				result, runErr := syncer.SyncAll(ctx, engine.SyncOptions{})
				if errors.Is(runErr, engine.ErrInterrupted) {
					return runErr
				}
				if runErr != nil {
					logger.Error().Err(runErr).Msg("sync pass failed")
					return nil
				}
				if full && !result.ServerOffline {
					if err := st.StateSet(store.StateLastFullSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
						logger.Warn().Err(err).Msg("could not record last full sync")
					}
				}
				logger.Info().
					Int("total", result.Total).
					Int("flushed", result.Flushed).
					Int("pushed", result.Pushed).
					Int("pulled", result.Pulled).
					Int("failed", result.Failed).
					Bool("server_offline", result.ServerOffline).
					Msg("sync pass finished")
				return nil
			}

			if err := runPass(true); err != nil {
				return withExitCode(exitcode.Interrupted, err)
			}
			if once {
				return nil
			}

			syncTicker := time.NewTicker(interval)
			defer syncTicker.Stop()
			pollTicker := time.NewTicker(serverPoll)
			defer pollTicker.Stop()

			for {
				select {
				case <-ctx.Done():
					logger.Info().Msg("watch stopped")
					return nil
				case <-syncTicker.C:
					if err := runPass(false); err != nil {
						return withExitCode(exitcode.Interrupted, err)
					}
				case <-pollTicker.C:
					// Full pass picks up server-side changes made on
					// other devices between regular intervals.
					if err := runPass(true); err != nil {
						return withExitCode(exitcode.Interrupted, err)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Override the sync interval (e.g. 30s, 5m)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass and exit")
	return cmd
}

func newWatchLogger(app *AppContext, cfg config.Config) (zerolog.Logger, func(), error) {
	logPath, err := config.ResolveStatePath(cfg.Defaults.StateDir, "watch.log")
	if err != nil {
		return zerolog.Nop(), func() {}, err
	}

	rotating := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}

	writers := []io.Writer{rotating}
	if app.Opts.Verbose && !app.Opts.JSON {
		writers = append(writers, zerolog.ConsoleWriter{Out: app.IO.ErrOut, TimeFormat: time.TimeOnly})
	}

	logger := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()
	return logger, func() { _ = rotating.Close() }, nil
}

// logEmitter mirrors sync events into the daemon log so a headless
// install has a record of what moved while nobody was watching.
type logEmitter struct {
	logger zerolog.Logger
}

func newLogEmitter(logger zerolog.Logger) *logEmitter {
	return &logEmitter{logger: logger}
}

func (e *logEmitter) Emit(event output.Event) error {
	var entry *zerolog.Event
	switch event.Level {
	case output.LevelError:
		entry = e.logger.Error()
	case output.LevelWarn:
		entry = e.logger.Warn()
	default:
		entry = e.logger.Info()
	}
	entry = entry.Str("event", string(event.Event))
	if event.ItemID != "" {
		entry = entry.Str("item_id", event.ItemID)
	}
	if event.EpisodeID != "" {
		entry = entry.Str("episode_id", event.EpisodeID)
	}
	if len(event.Details) > 0 {
		entry = entry.Fields(event.Details)
	}
	entry.Msg(event.Message)
	return nil
}
