package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version  *int         `yaml:"version"`
	Server   fileServer   `yaml:"server"`
	Sync     fileSync     `yaml:"sync"`
	Defaults fileDefaults `yaml:"defaults"`
}

type fileServer struct {
	BaseURL *string `yaml:"base_url"`
}

type fileSync struct {
	ToleranceSeconds      *int     `yaml:"tolerance_seconds"`
	FinishedThreshold     *float64 `yaml:"finished_threshold"`
	IntervalSeconds       *int     `yaml:"interval_seconds"`
	ServerPollSeconds     *int     `yaml:"server_poll_seconds"`
	RequestTimeoutSeconds *int     `yaml:"request_timeout_seconds"`
	RateLimitPerSecond    *float64 `yaml:"rate_limit_per_second"`
}

type fileDefaults struct {
	StateDir     *string `yaml:"state_dir"`
	DBFile       *string `yaml:"db_file"`
	DownloadsDir *string `yaml:"downloads_dir"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}
	if fc.Server.BaseURL != nil {
		cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(*fc.Server.BaseURL), "/")
	}
	if fc.Sync.ToleranceSeconds != nil {
		cfg.Sync.ToleranceSeconds = *fc.Sync.ToleranceSeconds
	}
	if fc.Sync.FinishedThreshold != nil {
		cfg.Sync.FinishedThreshold = *fc.Sync.FinishedThreshold
	}
	if fc.Sync.IntervalSeconds != nil {
		cfg.Sync.IntervalSeconds = *fc.Sync.IntervalSeconds
	}
	if fc.Sync.ServerPollSeconds != nil {
		cfg.Sync.ServerPollSeconds = *fc.Sync.ServerPollSeconds
	}
	if fc.Sync.RequestTimeoutSeconds != nil {
		cfg.Sync.RequestTimeoutSeconds = *fc.Sync.RequestTimeoutSeconds
	}
	if fc.Sync.RateLimitPerSecond != nil {
		cfg.Sync.RateLimitPerSecond = *fc.Sync.RateLimitPerSecond
	}
	if fc.Defaults.StateDir != nil {
		cfg.Defaults.StateDir = strings.TrimSpace(*fc.Defaults.StateDir)
	}
	if fc.Defaults.DBFile != nil {
		cfg.Defaults.DBFile = strings.TrimSpace(*fc.Defaults.DBFile)
	}
	if fc.Defaults.DownloadsDir != nil {
		cfg.Defaults.DownloadsDir = strings.TrimSpace(*fc.Defaults.DownloadsDir)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["SHELFSYNC_SERVER_URL"]); value != "" {
		cfg.Server.BaseURL = strings.TrimRight(value, "/")
	}
	if value := strings.TrimSpace(env["SHELFSYNC_TOKEN"]); value != "" {
		cfg.Server.Token = value
	}
	if value := strings.TrimSpace(env["SHELFSYNC_STATE_DIR"]); value != "" {
		cfg.Defaults.StateDir = value
	}
	if value := strings.TrimSpace(env["SHELFSYNC_TOLERANCE_SECONDS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SHELFSYNC_TOLERANCE_SECONDS value %q: %w", value, err)
		}
		cfg.Sync.ToleranceSeconds = parsed
	}
	if value := strings.TrimSpace(env["SHELFSYNC_SYNC_INTERVAL_SECONDS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SHELFSYNC_SYNC_INTERVAL_SECONDS value %q: %w", value, err)
		}
		cfg.Sync.IntervalSeconds = parsed
	}
	return nil
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}
