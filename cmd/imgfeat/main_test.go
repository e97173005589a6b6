package main

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/imgfeat"
	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/imageio"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

// captureSettings replaces the command's action with one that records the
// resolved settings.
func captureSettings(t *testing.T, app *cli.App, name string) **settings {
	t.Helper()
	var captured *settings
	findCommand(t, app, name).Action = func(c *cli.Context) error {
		s, err := loadSettings(c)
		captured = s
		return err
	}
	return &captured
}

func TestRunCommandFlagDefaults(t *testing.T) {
	app := newApp()
	cmd := findCommand(t, app, "run")

	defaults := map[string]string{}
	for _, flag := range cmd.Flags {
		switch f := flag.(type) {
		case *cli.StringFlag:
			defaults[f.Name] = f.Value
		case *cli.IntFlag:
			defaults[f.Name] = fmt.Sprint(f.Value)
		case *cli.DurationFlag:
			defaults[f.Name] = f.Value.String()
		}
	}

	assert.Equal(t, "dense", defaults["backend"])
	assert.Equal(t, "3", defaults["io-threads"])
	assert.Equal(t, "10s", defaults["timeout"])
	assert.Equal(t, "10000", defaults["chunk-size"])
	assert.Equal(t, "100", defaults["print-interval"])
	assert.Equal(t, "224", defaults["target-dim"])
	assert.Equal(t, "http://localhost:11434/v1", defaults["host"])
	assert.Equal(t, "", defaults["db"])
}

func TestRequiredFlags(t *testing.T) {
	t.Run("similar requires db", func(t *testing.T) {
		err := newApp().Run([]string{"imgfeat", "similar", "--image", "/tmp/a.png"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("similar requires image", func(t *testing.T) {
		err := newApp().Run([]string{"imgfeat", "similar", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "image")
	})

	t.Run("refeaturize requires db", func(t *testing.T) {
		err := newApp().Run([]string{"imgfeat", "refeaturize"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
		t.Run(level, func(t *testing.T) {
			app := &cli.App{
				Name:   "test",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}
			require.NoError(t, app.Run([]string{"test", "--log-level", level}))
		})
	}

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name:   "test",
			Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestReadSettings_Defaults(t *testing.T) {
	s, err := readSettings("")
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), s)
}

func TestReadSettings_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgfeat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /var/lib/imgfeat
featurize:
  backend: crow
  target_dim: 64
ingestion:
  io_threads: 5
  timeout: 2s
redis:
  addr: localhost:6379
`), 0644))

	t.Setenv("IMGFEAT_INGESTION_IO_THREADS", "7")
	t.Setenv("IMGFEAT_INGESTION_SINK_RETRY_DELAY", "250ms")

	s, err := readSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/imgfeat", s.DB)
	assert.Equal(t, "crow", s.Featurize.Backend)
	assert.Equal(t, 64, s.Featurize.TargetDim)
	assert.Equal(t, "llava:7b", s.Featurize.Model)
	assert.Equal(t, 7, s.Ingestion.IOThreads)
	assert.Equal(t, 2*time.Second, s.Ingestion.Timeout)
	assert.Equal(t, 250*time.Millisecond, s.Ingestion.SinkRetryDelay)
	assert.Equal(t, 10000, s.Ingestion.ChunkSize)
	assert.Equal(t, "localhost:6379", s.Redis.Addr)
}

func TestReadSettings_MissingFile(t *testing.T) {
	_, err := readSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadSettings_FlagsOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imgfeat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ingestion:\n  io_threads: 5\n  print_interval: 7\n"), 0644))
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("IMGFEAT_FEATURIZE_MODEL=moondream\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("IMGFEAT_FEATURIZE_MODEL") })

	app := newApp()
	captured := captureSettings(t, app, "run")

	err := app.Run([]string{"imgfeat", "--config", path, "--env-file", envFile,
		"run", "--io-threads", "9", "--backend", "objects", "--min-confidence", "0.5"})
	require.NoError(t, err)

	s := *captured
	require.NotNil(t, s)
	assert.Equal(t, 9, s.Ingestion.IOThreads)
	assert.Equal(t, 7, s.Ingestion.PrintInterval)
	assert.Equal(t, "objects", s.Featurize.Backend)
	assert.Equal(t, "moondream", s.Featurize.Model)
	assert.InDelta(t, 0.5, s.Featurize.MinConfidence, 1e-6)
}

func TestReferences(t *testing.T) {
	refs := slices.Collect(references(
		strings.NewReader("/a.png\n\n  /b.png  \n"),
		strings.NewReader("s3://bucket/c.png"),
	))
	assert.Equal(t, []core.Reference{"/a.png", "/b.png", "s3://bucket/c.png"}, refs)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, []*core.SearchResult{
		{Artifact: core.NewArtifact("/a.png", "dense"), Score: 0.98765},
	})
	assert.Equal(t, "0.9877\t/a.png\n", buf.String())
}

func TestBatchCommand_StoresArtifacts(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i, c := range []color.Color{color.White, color.Black} {
		path := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		require.NoError(t, imageio.WritePNG(path, 20, 20, c))
		lines = append(lines, path)
	}
	list := filepath.Join(dir, "refs.txt")
	require.NoError(t, os.WriteFile(list, []byte(strings.Join(lines, "\n")), 0644))

	dbPath := filepath.Join(dir, "db")
	err := newApp().Run([]string{"imgfeat", "--env-file", "",
		"batch", "--db", dbPath, "--target-dim", "16", "--timeout", "100ms", list})
	require.NoError(t, err)

	db, err := imgfeat.NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	count, err := db.ArtifactRepository().CountArtifacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
