package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/abshelf"
	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/output"
	"github.com/jaa/shelfsync/internal/reconcile"
	"github.com/jaa/shelfsync/internal/store"
)

func newDownloadsCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "Manage local audio files for offline listening",
	}
	cmd.AddCommand(newDownloadsListCommand(app))
	cmd.AddCommand(newDownloadsGetCommand(app))
	cmd.AddCommand(newDownloadsRemoveCommand(app))
	return cmd
}

func newDownloadsListCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List downloaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			st, err := openStore(cfg)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer st.Close()

			downloads, err := st.Downloads()
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if app.Opts.JSON {
				encoder := json.NewEncoder(app.IO.Out)
				for _, d := range downloads {
					entry := map[string]any{
						"item_id":       d.Key.ItemID,
						"episode_id":    d.Key.EpisodeID,
						"path":          d.Path,
						"size_bytes":    d.SizeBytes,
						"downloaded_at": d.DownloadedAt.Format(time.RFC3339),
					}
					if err := encoder.Encode(entry); err != nil {
						return withExitCode(exitcode.RuntimeFailure, err)
					}
				}
				return nil
			}

			if len(downloads) == 0 {
				fmt.Fprintln(app.IO.Out, "No local downloads.")
				return nil
			}
			for _, d := range downloads {
				fmt.Fprintf(app.IO.Out, "%-40s %s (%.1f MiB)\n", d.Key, d.Path, float64(d.SizeBytes)/(1024*1024))
			}
			return nil
		},
	}
}

func newDownloadsGetCommand(app *AppContext) *cobra.Command {
	var episodeID string

	cmd := &cobra.Command{
		Use:   "get ITEM",
		Short: "Download an item's audio file for offline playback",
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
			emitter := newEmitter(app)

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}

			item, err := client.Item(ctx, key.ItemID)
			if err != nil {
				return withExitCode(exitcode.ServerUnreachable, fmt.Errorf("fetch item %s: %w", key.ItemID, err))
			}
			audioFile, err := resolveAudioFileForKey(item, key)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			downloadsDir, err := config.ResolveStatePath(cfg.Defaults.StateDir, cfg.Defaults.DownloadsDir)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			dest := filepath.Join(downloadsDir, key.ItemID, audioFile.Metadata.Filename)

			_ = emitter.Emit(output.Event{
				Timestamp: time.Now(),
				Level:     output.LevelInfo,
				Event:     output.EventDownloadStarted,
				ItemID:    key.ItemID,
				EpisodeID: key.EpisodeID,
				Message:   fmt.Sprintf("[%s] downloading %s", key, audioFile.Metadata.Filename),
			})

			size, err := client.DownloadFile(ctx, key.ItemID, audioFile.Ino, dest)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("download %s: %w", key, err))
			}

			if err := st.PutDownload(store.Download{
				Key:          key,
				Path:         dest,
				SizeBytes:    size,
				DownloadedAt: time.Now().UTC(),
			}); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			_ = emitter.Emit(output.Event{
				Timestamp: time.Now(),
				Level:     output.LevelInfo,
				Event:     output.EventDownloadFinished,
				ItemID:    key.ItemID,
				EpisodeID: key.EpisodeID,
				Message:   fmt.Sprintf("[%s] downloaded %s (%.1f MiB)", key, dest, float64(size)/(1024*1024)),
				Details:   map[string]any{"path": dest, "size_bytes": size},
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	return cmd
}

func resolveAudioFileForKey(item *abshelf.LibraryItem, key reconcile.Key) (*abshelf.AudioFile, error) {
	return abshelf.ResolveAudioFile(item, key.EpisodeID)
}

// removeDownloadFile tolerates a file already gone so a half-finished
// rm can be rerun.
func removeDownloadFile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func newDownloadsRemoveCommand(app *AppContext) *cobra.Command {
	var episodeID string

	cmd := &cobra.Command{
		Use:     "rm ITEM",
		Aliases: []string{"remove"},
		Short:   "Delete a local download and its progress record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			st, err := openStore(cfg)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			defer st.Close()

			key := reconcile.Key{ItemID: args[0], EpisodeID: episodeID}
			download, err := st.GetDownload(key)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if download == nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("no download recorded for %s", key))
			}

			if err := removeDownloadFile(download.Path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("remove %s: %w", download.Path, err))
			}
			if err := st.RemoveDownload(key); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			_ = newEmitter(app).Emit(output.Event{
				Timestamp: time.Now(),
				Level:     output.LevelInfo,
				Event:     output.EventDownloadRemoved,
				ItemID:    key.ItemID,
				EpisodeID: key.EpisodeID,
				Message:   fmt.Sprintf("[%s] removed download and local progress", key),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&episodeID, "episode", "", "Podcast episode id")
	return cmd
}
