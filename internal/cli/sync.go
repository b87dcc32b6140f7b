package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/engine"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/reconcile"
)

func newSyncCommand(app *AppContext) *cobra.Command {
	var itemKeys []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile all known items with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseItemKeys(itemKeys)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

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

			result, runErr := syncer.SyncAll(ctx, engine.SyncOptions{
				Keys:   keys,
				DryRun: app.Opts.DryRun,
			})
			if runErr != nil {
				if errors.Is(runErr, engine.ErrInterrupted) {
					return withExitCode(exitcode.Interrupted, runErr)
				}
				return withExitCode(exitcode.RuntimeFailure, runErr)
			}

			if result.ServerOffline && result.Pushed == 0 && result.Pulled == 0 && result.Flushed == 0 {
				return withExitCode(exitcode.ServerUnreachable, fmt.Errorf("server is unreachable; %d item(s) queued for upload", result.Total))
			}
			if result.Failed > 0 {
				return withExitCode(exitcode.PartialSuccess, fmt.Errorf("sync finished with %d failed item(s)", result.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&itemKeys, "item", nil, "Reconcile only the given item id or item/episode (repeatable)")
	return cmd
}

// parseItemKeys accepts "itemID" or "itemID/episodeID".
func parseItemKeys(raw []string) ([]reconcile.Key, error) {
	keys := make([]reconcile.Key, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "/", 2)
		key := reconcile.Key{ItemID: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			key.EpisodeID = strings.TrimSpace(parts[1])
		}
		if key.ItemID == "" {
			return nil, fmt.Errorf("invalid item key %q (expected ITEM or ITEM/EPISODE)", entry)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
