package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Cache.Dir != "./hlsx-data" {
			t.Errorf("expected cache dir ./hlsx-data, got %s", config.Cache.Dir)
		}

		if config.Executor.MaxParallelDownloads != 2 {
			t.Errorf("expected 2 parallel downloads, got %d", config.Executor.MaxParallelDownloads)
		}

		if config.Executor.MinRetryCount != 5 {
			t.Errorf("expected min retry count 5, got %d", config.Executor.MinRetryCount)
		}

		if config.Executor.RetryDelay.Duration != time.Second {
			t.Errorf("expected retry delay 1s, got %v", config.Executor.RetryDelay)
		}

		if len(config.Catalog) != 3 {
			t.Errorf("expected 3 catalog entries, got %d", len(config.Catalog))
		}

		if got := config.Cache.TrackedActionsPath(); got != filepath.Join("./hlsx-data", "tracked_actions") {
			t.Errorf("unexpected tracked actions path %s", got)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[cache]
dir = "/var/cache/hlsx"

[executor]
max_parallel_downloads = 4
retry_delay = "250ms"
max_retry_delay = "2s"

[server]
port = 8080

[[catalog]]
name = "Local"
uri = "http://localhost/master.m3u8"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Cache.Dir != "/var/cache/hlsx" {
			t.Errorf("expected cache dir /var/cache/hlsx, got %s", config.Cache.Dir)
		}
		if config.Cache.TrackedActionsFile != "tracked_actions" {
			t.Errorf("expected default tracked actions file to survive, got %s", config.Cache.TrackedActionsFile)
		}
		if config.Executor.MaxParallelDownloads != 4 {
			t.Errorf("expected 4 parallel downloads, got %d", config.Executor.MaxParallelDownloads)
		}
		if config.Executor.RetryDelay.Duration != 250*time.Millisecond {
			t.Errorf("expected retry delay 250ms, got %v", config.Executor.RetryDelay)
		}
		if config.Executor.MinRetryCount != 5 {
			t.Errorf("expected default min retry count, got %d", config.Executor.MinRetryCount)
		}
		if len(config.Catalog) != 1 || config.Catalog[0].Name != "Local" {
			t.Errorf("expected catalog to be replaced, got %+v", config.Catalog)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tmpDir := t.TempDir()
		tc := []struct {
			name string
			body string
		}{
			{name: "zero parallelism", body: "[executor]\nmax_parallel_downloads = 0\n"},
			{name: "bad duration", body: "[executor]\nretry_delay = \"soon\"\n"},
			{name: "max delay below delay", body: "[executor]\nretry_delay = \"10s\"\nmax_retry_delay = \"1s\"\n"},
		}

		for i, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				path := filepath.Join(tmpDir, filepath.Base(t.Name())+".toml")
				if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
					t.Fatalf("case %d: failed to write config: %v", i, err)
				}
				if _, err := LoadConfig(path); err == nil {
					t.Error("expected error for invalid config")
				}
			})
		}
	})

	t.Run("Validate wraps ErrInvalidConfig", func(t *testing.T) {
		config := DefaultConfig()
		config.Cache.Dir = " "
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("HLSX_CACHE_DIR", "/tmp/hlsx-env")
		t.Setenv("HLSX_LOG_LEVEL", "debug")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Cache.Dir != "/tmp/hlsx-env" {
			t.Errorf("expected env cache dir, got %s", config.Cache.Dir)
		}
		if config.Database.Path != filepath.Join("/tmp/hlsx-env", "hlsx.db") {
			t.Errorf("expected database to follow cache dir, got %s", config.Database.Path)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected debug level, got %s", config.Log.Level)
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer os.Chdir(wd)

	if err := os.WriteFile(".env", []byte("HLSX_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("HLSX_TEST_DOTENV", "")
	os.Unsetenv("HLSX_TEST_DOTENV")

	loaded, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0] != ".env" {
		t.Errorf("expected only .env to load, got %v", loaded)
	}
	if got := os.Getenv("HLSX_TEST_DOTENV"); got != "loaded" {
		t.Errorf("expected HLSX_TEST_DOTENV=loaded, got %q", got)
	}
}
