package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/shared"
	tu "github.com/desertthunder/hlsx/internal/testing"
	"github.com/fatih/color"
)

const sintel = "https://example.com/sintel.m3u8"

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeTracks struct{}

func (fakeTracks) Tracks(context.Context, models.ResourceID) ([]models.TrackOption, error) {
	return []models.TrackOption{
		{Key: models.TrackKey{Track: 0}, Name: "640x360"},
		{Key: models.TrackKey{Track: 1}, Name: "1280x720"},
	}, nil
}

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Cache.Dir = dir
	config.Database.Path = filepath.Join(dir, "hlsx.db")
	config.Executor.MinRetryCount = 0
	config.Executor.RetryDelay = shared.Duration{Duration: time.Millisecond}
	config.Executor.MaxRetryDelay = shared.Duration{Duration: time.Millisecond}
	config.Catalog = []shared.CatalogEntry{{Name: "Sintel", URI: sintel}}
	return config
}

func testRunner(t *testing.T, fetcher *tu.GateFetcher) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  testConfig(t),
		Fetcher: fetcher,
		Tracks:  fakeTracks{},
		Logger:  shared.NewLogger(&bytes.Buffer{}),
		Output:  output,
	})
	return runner, output
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return newApp(r).Run(context.Background(), append([]string{"hlsx"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			httpClient := &http.Client{}
			fetcher := tu.NewOpenFetcher()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				HTTPClient: httpClient,
				Fetcher:    fetcher,
				Tracks:     fakeTracks{},
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.fetcher != fetcher {
				t.Error("expected fetcher to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if w, ok := runner.output.(*syncWriter); !ok || w.w != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		want := "setup download remove status list tracks catalog serve tui"
		if got := strings.Join(names, " "); got != want {
			t.Errorf("commands = %q, want %q", got, want)
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("reads config file and env overrides", func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			if err := shared.CreateConfigFile(path); err != nil {
				t.Fatal(err)
			}
			t.Setenv("HLSX_CACHE_DIR", filepath.Join(dir, "cache"))

			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{})})
			config, err := runner.loadConfig(nil)
			if err != nil {
				t.Fatalf("loadConfig failed: %v", err)
			}
			if config.Cache.Dir != filepath.Join(dir, "cache") {
				t.Errorf("cache dir = %q", config.Cache.Dir)
			}
			if again, _ := runner.loadConfig(nil); again != config {
				t.Error("expected config to be cached")
			}
		})

		t.Run("invalid config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[executor]\nmax_parallel_downloads = 0\n"), 0644); err != nil {
				t.Fatal(err)
			}
			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{})})
			if _, err := runner.loadConfig(nil); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	})
}

func TestCommands(t *testing.T) {
	t.Run("download, status, list and remove", func(t *testing.T) {
		runner, output := testRunner(t, tu.NewOpenFetcher())

		if err := run(t, runner, "download", "--track", "0.0.1", sintel); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if got := output.String(); !strings.Contains(got, "Downloading Sintel") || !strings.Contains(got, "Downloaded Sintel") {
			t.Errorf("download output = %q", got)
		}

		output.Reset()
		if err := run(t, runner, "status", "--json", sintel); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
			t.Fatalf("invalid status JSON %q: %v", output.String(), err)
		}
		if entry.State != "cached" || strings.Join(entry.Tracks, ",") != "0.0.1" {
			t.Errorf("entry = %+v", entry)
		}

		output.Reset()
		if err := run(t, runner, "download", sintel); err != nil {
			t.Fatalf("repeat download failed: %v", err)
		}
		if !strings.Contains(output.String(), "already cached") {
			t.Errorf("repeat download output = %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "list", "--format", "csv"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if got := output.String(); !strings.HasPrefix(got, "Resource,Name,State") || !strings.Contains(got, sintel) {
			t.Errorf("list output = %q", got)
		}

		output.Reset()
		if err := run(t, runner, "remove", sintel); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if !strings.Contains(output.String(), "Removed Sintel") {
			t.Errorf("remove output = %q", output.String())
		}
		if strings.Contains(output.String(), "Downloaded") {
			t.Error("removal should not be reported by the notifier")
		}

		output.Reset()
		if err := run(t, runner, "remove", sintel); err != nil {
			t.Fatalf("second remove failed: %v", err)
		}
		if !strings.Contains(output.String(), "is not cached") {
			t.Errorf("second remove output = %q", output.String())
		}

		output.Reset()
		if err := run(t, runner, "status", sintel); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "not cached") {
			t.Errorf("status output = %q", output.String())
		}
	})

	t.Run("download without waiting resumes later", func(t *testing.T) {
		gate := tu.NewGateFetcher()
		runner, output := testRunner(t, gate)

		if err := run(t, runner, "download", "--wait=false", sintel); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if !strings.Contains(output.String(), "resume") {
			t.Errorf("output = %q", output.String())
		}

		gate.Release()
		output.Reset()
		if err := run(t, runner, "status", "--json", sintel); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
			t.Fatalf("invalid status JSON: %v", err)
		}
		if entry.Resource != sintel {
			t.Errorf("resource = %q, want tracked %q", entry.Resource, sintel)
		}
	})

	t.Run("failed download is reported", func(t *testing.T) {
		fetcher := tu.NewOpenFetcher()
		fetcher.FailNext(sintel, 1, shared.ErrNotFound)
		runner, output := testRunner(t, fetcher)

		if err := run(t, runner, "download", sintel); err != nil {
			t.Fatalf("download failed: %v", err)
		}
		if !strings.Contains(output.String(), "Download failed") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("tracks and catalog", func(t *testing.T) {
		runner, output := testRunner(t, tu.NewOpenFetcher())

		if err := run(t, runner, "tracks", sintel); err != nil {
			t.Fatalf("tracks failed: %v", err)
		}
		if got := output.String(); got != "0.0.0\t640x360\n0.0.1\t1280x720\n" {
			t.Errorf("tracks output = %q", got)
		}

		output.Reset()
		if err := run(t, runner, "catalog"); err != nil {
			t.Fatalf("catalog failed: %v", err)
		}
		if got := output.String(); !strings.Contains(got, "1. Sintel [not cached]") {
			t.Errorf("catalog output = %q", got)
		}
	})

	t.Run("list to file", func(t *testing.T) {
		runner, _ := testRunner(t, tu.NewOpenFetcher())
		path := filepath.Join(t.TempDir(), "cache.json")

		if err := run(t, runner, "list", "--format", "json", "--output", path); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if got := strings.TrimSpace(tu.MustReadFile(t, path)); got != "[]" {
			t.Errorf("export = %q, want []", got)
		}
	})

	t.Run("setup", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		t.Setenv("HLSX_CACHE_DIR", filepath.Join(dir, "cache"))
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{}), Output: output})

		if err := run(t, runner, "setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		tu.AssertFileExists(t, filepath.Join(dir, "cache", "hlsx.db"))
		tu.AssertDirExists(t, filepath.Join(dir, "cache", "downloads"))
		if !strings.Contains(output.String(), "Cache ready") {
			t.Errorf("output = %q", output.String())
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
			want error
		}{
			{"download without uri", []string{"download"}, shared.ErrMissingArgument},
			{"remove without uri", []string{"remove"}, shared.ErrMissingArgument},
			{"status without uri", []string{"status"}, shared.ErrMissingArgument},
			{"bad track key", []string{"download", "--track", "x", sintel}, shared.ErrInvalidTrackKey},
			{"unknown track", []string{"download", "--track", "0.0.9", sintel}, shared.ErrInvalidTrackKey},
			{"bad format", []string{"list", "--format", "xml"}, shared.ErrInvalidInput},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner, _ := testRunner(t, tu.NewOpenFetcher())
				if err := run(t, runner, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("err = %v, want %v", err, tt.want)
				}
			})
		}
	})
}

func TestReportStart(t *testing.T) {
	r, output := testRunner(t, tu.NewOpenFetcher())
	m, err := offline.New(r.config, r.logger, offline.Options{Fetcher: r.fetcher, Tracks: r.tracks})
	if err != nil {
		t.Fatalf("offline.New() error = %v", err)
	}
	defer m.Close()

	none := func(context.Context, models.ResourceID, []models.TrackOption) ([]models.TrackKey, error) {
		return nil, nil
	}
	started, err := m.Download(context.Background(), sintel, none)
	if err != nil || started {
		t.Fatalf("Download() = %v, %v; want false, nil", started, err)
	}
	r.reportStart(m, sintel, started)
	if got := output.String(); !strings.Contains(got, "No tracks selected for Sintel") || strings.Contains(got, "already cached") {
		t.Errorf("empty selection output = %q", got)
	}

	output.Reset()
	if started, err = m.Download(context.Background(), sintel, offline.SelectAll); err != nil || !started {
		t.Fatalf("Download() = %v, %v; want true, nil", started, err)
	}
	r.reportStart(m, sintel, started)
	if got := output.String(); !strings.Contains(got, "Downloading Sintel") {
		t.Errorf("started output = %q", got)
	}

	output.Reset()
	started, _ = m.Download(context.Background(), sintel, offline.SelectAll)
	r.reportStart(m, sintel, started)
	if got := output.String(); !strings.Contains(got, "Sintel is already cached") {
		t.Errorf("tracked output = %q", got)
	}
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(&buf)

	download := models.NewDownloadAction(sintel, nil, []byte("Sintel"))
	n.OnTaskStateChanged(models.TaskState{Action: download, State: models.StateStarted})
	n.OnTaskStateChanged(models.TaskState{Action: models.NewRemoveAction(sintel), State: models.StateCompleted})
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}

	n.OnTaskStateChanged(models.TaskState{Action: download, State: models.StateCompleted})
	n.OnTaskStateChanged(models.TaskState{Action: download, State: models.StateFailed, Err: shared.ErrNotFound})

	got := buf.String()
	if !strings.Contains(got, "Downloaded Sintel") || !strings.Contains(got, "Download failed Sintel: not found") {
		t.Errorf("output = %q", got)
	}
}
