package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvFilesLoadsEnvAndLocalOverrides(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	localPath := filepath.Join(tmp, ".env.local")

	if err := os.WriteFile(envPath, []byte("SHELFSYNC_TOKEN=token-a\nSHELFSYNC_SERVER_URL=https://abs.example.com\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	if err := os.WriteFile(localPath, []byte("SHELFSYNC_TOKEN=token-b\n"), 0o644); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, nil, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if values["SHELFSYNC_TOKEN"] != "token-b" {
		t.Fatalf("expected .env.local to override .env, got %q", values["SHELFSYNC_TOKEN"])
	}
	if values["SHELFSYNC_SERVER_URL"] != "https://abs.example.com" {
		t.Fatalf("expected SHELFSYNC_SERVER_URL from .env, got %q", values["SHELFSYNC_SERVER_URL"])
	}
}

func TestLoadDotEnvFilesDoesNotOverrideProcessEnv(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, ".env")
	if err := os.WriteFile(envPath, []byte("SHELFSYNC_TOKEN=from-file\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	values := map[string]string{}
	setenv := func(k, v string) error {
		values[k] = v
		return nil
	}

	if err := loadDotEnvFiles(tmp, []string{"SHELFSYNC_TOKEN=already-set"}, setenv); err != nil {
		t.Fatalf("load dotenv files: %v", err)
	}
	if _, exists := values["SHELFSYNC_TOKEN"]; exists {
		t.Fatalf("expected existing process env to be protected")
	}
}

func TestParseDotEnvLineSupportsExportAndQuotedValues(t *testing.T) {
	key, value, ok, err := parseDotEnvLine("export SHELFSYNC_SERVER_URL=\"https://abs.example.com\"")
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	if !ok || key != "SHELFSYNC_SERVER_URL" || value != "https://abs.example.com" {
		t.Fatalf("unexpected parse result: ok=%v key=%q value=%q", ok, key, value)
	}

	key, value, ok, err = parseDotEnvLine("SHELFSYNC_TOKEN='abc123'")
	if err != nil {
		t.Fatalf("parse single-quoted line: %v", err)
	}
	if !ok || key != "SHELFSYNC_TOKEN" || value != "abc123" {
		t.Fatalf("unexpected single-quoted parse result: ok=%v key=%q value=%q", ok, key, value)
	}
}
