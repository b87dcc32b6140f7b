package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	base := strings.TrimSpace(cfg.Server.BaseURL)
	if base == "" {
		problems = append(problems, "server.base_url must be set")
	} else {
		parsed, err := url.Parse(base)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			problems = append(problems, fmt.Sprintf("server.base_url %q must be an http(s) URL", base))
		}
	}

	if cfg.Sync.ToleranceSeconds <= 0 {
		problems = append(problems, "sync.tolerance_seconds must be > 0")
	}
	if cfg.Sync.FinishedThreshold <= 0 || cfg.Sync.FinishedThreshold > 1 {
		problems = append(problems, "sync.finished_threshold must be in (0, 1]")
	}
	if cfg.Sync.IntervalSeconds <= 0 {
		problems = append(problems, "sync.interval_seconds must be > 0")
	}
	if cfg.Sync.ServerPollSeconds <= 0 {
		problems = append(problems, "sync.server_poll_seconds must be > 0")
	}
	if cfg.Sync.RequestTimeoutSeconds <= 0 {
		problems = append(problems, "sync.request_timeout_seconds must be > 0")
	}
	if cfg.Sync.RateLimitPerSecond <= 0 {
		problems = append(problems, "sync.rate_limit_per_second must be > 0")
	}

	stateDir, err := ExpandPath(cfg.Defaults.StateDir)
	if err != nil || strings.TrimSpace(stateDir) == "" {
		problems = append(problems, "defaults.state_dir must be a valid path")
	} else if !filepath.IsAbs(stateDir) {
		problems = append(problems, "defaults.state_dir must resolve to an absolute path")
	}
	if strings.TrimSpace(cfg.Defaults.DBFile) == "" {
		problems = append(problems, "defaults.db_file must be set")
	}
	if strings.TrimSpace(cfg.Defaults.DownloadsDir) == "" {
		problems = append(problems, "defaults.downloads_dir must be set")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateOnline extends Validate with the checks that need a token,
// used by commands that will actually talk to the server.
func ValidateOnline(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Server.Token) == "" {
		return &ValidationError{Problems: []string{"server token must be provided via SHELFSYNC_TOKEN"}}
	}
	return nil
}
