package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaa/shelfsync/internal/exitcode"
	"github.com/jaa/shelfsync/internal/store"
)

func newStatusCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked items, pending uploads, and downloads",
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

			summaries, err := st.Summaries()
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			downloads, err := st.Downloads()
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			lastFullSync, err := st.StateGet(store.StateLastFullSync)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if app.Opts.JSON {
				return printStatusJSON(app, summaries, downloads, lastFullSync)
			}
			printStatusHuman(app, summaries, downloads, lastFullSync)
			return nil
		},
	}
}

func printStatusJSON(app *AppContext, summaries []store.Summary, downloads []store.Download, lastFullSync string) error {
	items := make([]map[string]any, 0, len(summaries))
	for _, sum := range summaries {
		entry := map[string]any{
			"item_id":      sum.Key.ItemID,
			"episode_id":   sum.Key.EpisodeID,
			"position":     sum.Position,
			"duration":     sum.Duration,
			"finished":     sum.Finished,
			"updated_at":   sum.UpdatedAt.Format(time.RFC3339),
			"needs_upload": sum.NeedsUpload,
		}
		if !sum.LastSyncedAt.IsZero() {
			entry["last_synced_at"] = sum.LastSyncedAt.Format(time.RFC3339)
		}
		items = append(items, entry)
	}

	files := make([]map[string]any, 0, len(downloads))
	for _, d := range downloads {
		files = append(files, map[string]any{
			"item_id":       d.Key.ItemID,
			"episode_id":    d.Key.EpisodeID,
			"path":          d.Path,
			"size_bytes":    d.SizeBytes,
			"downloaded_at": d.DownloadedAt.Format(time.RFC3339),
		})
	}

	payload := map[string]any{"items": items, "downloads": files}
	if lastFullSync != "" {
		payload["last_full_sync"] = lastFullSync
	}
	encoder := json.NewEncoder(app.IO.Out)
	return encoder.Encode(payload)
}

func printStatusHuman(app *AppContext, summaries []store.Summary, downloads []store.Download, lastFullSync string) {
	if lastFullSync != "" {
		fmt.Fprintf(app.IO.Out, "Last full sync: %s\n", lastFullSync)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(app.IO.Out, "No tracked items.")
	}
	pending := 0
	for _, sum := range summaries {
		marker := " "
		if sum.NeedsUpload {
			marker = "*"
			pending++
		}
		state := formatPosition(sum.Position)
		if sum.Duration > 0 {
			state = fmt.Sprintf("%s / %s", state, formatPosition(sum.Duration))
		}
		if sum.Finished {
			state = "finished"
		}
		fmt.Fprintf(app.IO.Out, "%s %-40s %s (updated %s)\n", marker, sum.Key, state, sum.UpdatedAt.Format(time.RFC3339))
	}
	if pending > 0 {
		fmt.Fprintf(app.IO.Out, "%d item(s) pending upload (*)\n", pending)
	}
	if len(downloads) > 0 {
		fmt.Fprintf(app.IO.Out, "\n%d local download(s):\n", len(downloads))
		for _, d := range downloads {
			fmt.Fprintf(app.IO.Out, "  %-40s %s (%.1f MiB)\n", d.Key, d.Path, float64(d.SizeBytes)/(1024*1024))
		}
	}
}
