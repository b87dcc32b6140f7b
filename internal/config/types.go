package config

type Config struct {
	Version  int      `yaml:"version"`
	Server   Server   `yaml:"server"`
	Sync     Sync     `yaml:"sync"`
	Defaults Defaults `yaml:"defaults"`
}

type Server struct {
	BaseURL string `yaml:"base_url"`
	// Token is env-only (SHELFSYNC_TOKEN or .env); never written to
	// the config file.
	Token string `yaml:"-"`
}

type Sync struct {
	ToleranceSeconds      int     `yaml:"tolerance_seconds"`
	FinishedThreshold     float64 `yaml:"finished_threshold"`
	IntervalSeconds       int     `yaml:"interval_seconds"`
	ServerPollSeconds     int     `yaml:"server_poll_seconds"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
}

type Defaults struct {
	StateDir     string `yaml:"state_dir"`
	DBFile       string `yaml:"db_file"`
	DownloadsDir string `yaml:"downloads_dir"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Sync: Sync{
			ToleranceSeconds:      5,
			FinishedThreshold:     0.95,
			IntervalSeconds:       60,
			ServerPollSeconds:     300,
			RequestTimeoutSeconds: 10,
			RateLimitPerSecond:    5,
		},
		Defaults: Defaults{
			StateDir:     defaultStateDir(),
			DBFile:       "progress.db",
			DownloadsDir: "downloads",
		},
	}
}
