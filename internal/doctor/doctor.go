// Package doctor runs environment diagnostics: can we reach the
// server, does the token work, is the state directory usable.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jaa/shelfsync/internal/abshelf"
	"github.com/jaa/shelfsync/internal/config"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

// Checker holds the probes as injected functions so tests can run the
// full check flow without a server or a writable filesystem.
type Checker struct {
	Ping          func(ctx context.Context) error
	Authenticate  func(ctx context.Context) (*abshelf.User, error)
	CheckWritable func(path string) error
	OpenStore     func(path string) error
	PendingCount  func(path string) (int, error)
}

func NewChecker(client *abshelf.Client) *Checker {
	c := &Checker{
		CheckWritable: checkDirWritable,
		OpenStore:     func(path string) error { return nil },
	}
	if client != nil {
		c.Ping = client.Ping
		c.Authenticate = client.Me
	}
	return c
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	report.Checks = append(report.Checks, c.serverChecks(ctx, cfg)...)
	report.Checks = append(report.Checks, c.filesystemChecks(cfg)...)

	return report
}

func (c *Checker) serverChecks(ctx context.Context, cfg config.Config) []Check {
	var checks []Check

	if strings.TrimSpace(cfg.Server.BaseURL) == "" {
		return append(checks, Check{
			Severity: SeverityError,
			Name:     "server",
			Message:  "server base_url is not configured",
		})
	}

	if c.Ping == nil {
		return append(checks, Check{
			Severity: SeverityWarn,
			Name:     "server",
			Message:  "server checks skipped (no client)",
		})
	}

	if err := c.Ping(ctx); err != nil {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "server",
			Message:  fmt.Sprintf("server %s is unreachable: %v", cfg.Server.BaseURL, err),
		})
		return checks
	}
	checks = append(checks, Check{
		Severity: SeverityInfo,
		Name:     "server",
		Message:  fmt.Sprintf("server %s is reachable", cfg.Server.BaseURL),
	})

	if strings.TrimSpace(cfg.Server.Token) == "" {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "auth",
			Message:  "SHELFSYNC_TOKEN is not set; authenticated calls will fail",
		})
		return checks
	}

	if c.Authenticate == nil {
		return checks
	}
	user, err := c.Authenticate(ctx)
	if err != nil {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "auth",
			Message:  fmt.Sprintf("token was rejected by the server: %v", err),
		})
		return checks
	}
	checks = append(checks, Check{
		Severity: SeverityInfo,
		Name:     "auth",
		Message:  fmt.Sprintf("authenticated as %s", user.Username),
	})
	return checks
}

func (c *Checker) filesystemChecks(cfg config.Config) []Check {
	var checks []Check

	stateDir, err := config.ExpandPath(cfg.Defaults.StateDir)
	if err != nil {
		return append(checks, Check{
			Severity: SeverityError,
			Name:     "filesystem",
			Message:  fmt.Sprintf("state_dir is invalid: %v", err),
		})
	}

	if err := c.CheckWritable(stateDir); err != nil {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "filesystem",
			Message:  fmt.Sprintf("state_dir %s is not writable: %v", stateDir, err),
		})
	} else {
		checks = append(checks, Check{
			Severity: SeverityInfo,
			Name:     "filesystem",
			Message:  fmt.Sprintf("state_dir %s is writable", stateDir),
		})
	}

	dbPath, err := config.ResolveStatePath(cfg.Defaults.StateDir, cfg.Defaults.DBFile)
	if err != nil {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "database",
			Message:  fmt.Sprintf("db_file is invalid: %v", err),
		})
	} else if c.OpenStore != nil {
		if err := c.OpenStore(dbPath); err != nil {
			checks = append(checks, Check{
				Severity: SeverityError,
				Name:     "database",
				Message:  fmt.Sprintf("progress database %s could not be opened: %v", dbPath, err),
			})
		} else {
			checks = append(checks, Check{
				Severity: SeverityInfo,
				Name:     "database",
				Message:  fmt.Sprintf("progress database %s opens cleanly", dbPath),
			})
			checks = append(checks, c.backlogChecks(dbPath)...)
		}
	}

	downloadsDir, err := config.ResolveStatePath(cfg.Defaults.StateDir, cfg.Defaults.DownloadsDir)
	if err != nil {
		checks = append(checks, Check{
			Severity: SeverityError,
			Name:     "filesystem",
			Message:  fmt.Sprintf("downloads_dir is invalid: %v", err),
		})
		return checks
	}
	if _, statErr := os.Stat(downloadsDir); os.IsNotExist(statErr) {
		checks = append(checks, Check{
			Severity: SeverityInfo,
			Name:     "filesystem",
			Message:  fmt.Sprintf("downloads_dir %s does not exist yet (created on first download)", downloadsDir),
		})
		return checks
	}
	if err := c.CheckWritable(downloadsDir); err != nil {
		checks = append(checks, Check{
			Severity: SeverityWarn,
			Name:     "filesystem",
			Message:  fmt.Sprintf("downloads_dir %s is not writable: %v", downloadsDir, err),
		})
	} else {
		checks = append(checks, Check{
			Severity: SeverityInfo,
			Name:     "filesystem",
			Message:  fmt.Sprintf("downloads_dir %s is writable", downloadsDir),
		})
	}
	return checks
}

func (c *Checker) backlogChecks(dbPath string) []Check {
	if c.PendingCount == nil {
		return nil
	}
	count, err := c.PendingCount(dbPath)
	if err != nil {
		return []Check{{
			Severity: SeverityWarn,
			Name:     "database",
			Message:  fmt.Sprintf("could not count pending uploads: %v", err),
		}}
	}
	if count > 0 {
		return []Check{{
			Severity: SeverityWarn,
			Name:     "database",
			Message:  fmt.Sprintf("%d item(s) queued for upload; run `shelfsync sync` to flush", count),
		}}
	}
	return []Check{{
		Severity: SeverityInfo,
		Name:     "database",
		Message:  "no pending uploads",
	}}
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	file, err := os.CreateTemp(path, ".shelfsync-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}
