package config

import "fmt"

func DefaultTemplate() string {
	d := DefaultConfig()
	return fmt.Sprintf(`version: 1
server:
  base_url: "http://audiobookshelf.local:13378"
  # Token comes from the SHELFSYNC_TOKEN env var or a .env file,
  # never from this file.
sync:
  tolerance_seconds: %d
  finished_threshold: %.2f
  interval_seconds: %d
  server_poll_seconds: %d
  request_timeout_seconds: %d
  rate_limit_per_second: %.0f
defaults:
  state_dir: %q
  db_file: %q
  downloads_dir: %q
`,
		d.Sync.ToleranceSeconds,
		d.Sync.FinishedThreshold,
		d.Sync.IntervalSeconds,
		d.Sync.ServerPollSeconds,
		d.Sync.RequestTimeoutSeconds,
		d.Sync.RateLimitPerSecond,
		d.Defaults.StateDir,
		d.Defaults.DBFile,
		d.Defaults.DownloadsDir,
	)
}
