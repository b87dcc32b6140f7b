package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jaa/shelfsync/internal/abshelf"
	"github.com/jaa/shelfsync/internal/config"
	"github.com/jaa/shelfsync/internal/engine"
	"github.com/jaa/shelfsync/internal/output"
	"github.com/jaa/shelfsync/internal/store"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*store.Store, error) {
	dbPath, err := config.ResolveStatePath(cfg.Defaults.StateDir, cfg.Defaults.DBFile)
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath, store.Options{})
}

func newServerClient(cfg config.Config) *abshelf.Client {
	return abshelf.NewClient(cfg.Server.BaseURL, cfg.Server.Token, abshelf.ClientOptions{
		Timeout:            time.Duration(cfg.Sync.RequestTimeoutSeconds) * time.Second,
		RateLimitPerSecond: cfg.Sync.RateLimitPerSecond,
	})
}

func newEmitter(app *AppContext) output.EventEmitter {
	if app.Opts.JSON {
		return output.NewJSONEmitter(app.IO.Out)
	}
	return output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

func newSyncer(cfg config.Config, st *store.Store, client *abshelf.Client, emitter output.EventEmitter) *engine.Syncer {
	syncer := engine.NewSyncer(st, client, emitter)
	syncer.Tolerance = time.Duration(cfg.Sync.ToleranceSeconds) * time.Second
	syncer.FinishedThreshold = cfg.Sync.FinishedThreshold
	return syncer
}

// deviceID returns the stable identifier this install reports to the
// server in playback sessions. Generated once and kept in sync_state.
func deviceID(st *store.Store) (string, error) {
	id, err := st.StateGet(store.StateDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := st.StateSet(store.StateDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func deviceInfo(id string) abshelf.DeviceInfo {
	return abshelf.DeviceInfo{DeviceID: id, ClientName: "shelfsync"}
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
