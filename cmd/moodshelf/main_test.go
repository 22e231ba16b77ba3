package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/moodshelf/ai/mock"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const catalog = `isbn13,isbn10,title,subtitle,authors,categories,thumbnail,description,published_year,average_rating,num_pages,ratings_count
9780000000001,0000000001,Northern Hearts,,Ann Lee,Fiction,,A love story told through letters and a stolen kiss,2001,4.2,300,1200
9780000000002,0000000002,The Cellar,,Bo Grant,Horror,,A dark tale of murder and blood in an old house,1999,3.6,250,800
9780000000003,0000000003,Learning Go,,C. Dev,Computers,,A practical guide to programming and software engineering,2020,4.8,400,150
9780000000004,0000000004,Untitled,,D. Nobody,Fiction,,,2010,3.0,100,5
`

const testDims = 8

// fakeEmbeddings serves the OpenAI embeddings endpoint with deterministic vectors.
func fakeEmbeddings(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		type datum struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i, text := range req.Input {
			data[i] = datum{Object: "embedding", Embedding: mock.DeterministicVector(text, testDims), Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &requests
}

type harness struct {
	dataDir  string
	host     string
	source   string
	requests *atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv, requests := fakeEmbeddings(t)
	source := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(source, []byte(catalog), 0644))
	return &harness{
		dataDir:  t.TempDir(),
		host:     srv.URL,
		source:   source,
		requests: requests,
	}
}

// run executes the CLI and returns what it wrote to stdout.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard

	full := append([]string{
		"moodshelf",
		"--log-level", "error",
		"--data-dir", h.dataDir,
		"--embedding-host", h.host,
		"--dimensions", "8",
	}, args...)
	err := app.Run(full)
	return out.String(), err
}

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

func findFlag[T cli.Flag](t *testing.T, flags []cli.Flag, name string) T {
	t.Helper()
	for _, flag := range flags {
		if f, ok := flag.(T); ok {
			for _, n := range flag.Names() {
				if n == name {
					return f
				}
			}
		}
	}
	var zero T
	t.Fatalf("flag %q not found", name)
	return zero
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("embedding-host has default value and env var", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, app.Flags, "embedding-host")
		assert.Equal(t, "http://localhost:11434/v1", f.Value)
		assert.Equal(t, []string{"MOODSHELF_EMBEDDING_HOST"}, f.EnvVars)
	})

	t.Run("embedding-model defaults to all-minilm", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, app.Flags, "embedding-model")
		assert.Equal(t, "all-minilm", f.Value)
	})

	t.Run("dimensions default to 384", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](t, app.Flags, "dimensions")
		assert.Equal(t, 384, f.Value)
	})

	t.Run("build source is required", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, findCommand(t, app, "build").Flags, "source")
		assert.True(t, f.Required)
	})

	t.Run("build defaults to a flat index with one attempt", func(t *testing.T) {
		build := findCommand(t, app, "build")
		assert.Equal(t, "flat", findFlag[*cli.StringFlag](t, build.Flags, "index").Value)
		assert.Equal(t, 1, findFlag[*cli.IntFlag](t, build.Flags, "max-retries").Value)
	})

	t.Run("search defaults to five results", func(t *testing.T) {
		search := findCommand(t, app, "search")
		assert.Equal(t, 5, findFlag[*cli.IntFlag](t, search.Flags, "top-k").Value)
		assert.Equal(t, 2, findFlag[*cli.IntFlag](t, search.Flags, "oversample").Value)
	})
}

func TestBuildCommandValidation(t *testing.T) {
	h := newHarness(t)

	t.Run("missing source fails", func(t *testing.T) {
		_, err := h.run(t, "build")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source")
	})

	t.Run("unknown index kind fails", func(t *testing.T) {
		_, err := h.run(t, "build", "--source", h.source, "--index", "ivf")
		assert.ErrorIs(t, err, vectorindex.ErrUnknownKind)
	})

	t.Run("zero retries fails", func(t *testing.T) {
		_, err := h.run(t, "build", "--source", h.source, "--max-retries", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max-retries")
	})

	t.Run("missing catalog fails", func(t *testing.T) {
		_, err := h.run(t, "build", "--source", filepath.Join(t.TempDir(), "nope.csv"))
		assert.ErrorIs(t, err, core.ErrDataUnavailable)
	})
}

func TestSearchBeforeBuild(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "search", "anything")
	assert.ErrorIs(t, err, core.ErrNotReady)

	_, err = h.run(t, "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestBuildThenSearch(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "build", "--source", h.source, "--workers", "2", "--progress=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Published version")
	assert.Contains(t, out, "3 (1 skipped)")
	requests := h.requests.Load()
	assert.Positive(t, requests)

	out, err = h.run(t, "search", "--json", "-k", "1", "A practical guide to programming and software engineering")
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Learning Go", results[0]["title"])
	assert.InDelta(t, 1.0, results[0]["similarity_score"], 1e-4)

	out, err = h.run(t, "search", "--mood", "romantic", "books", "about", "love")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Northern Hearts by Ann Lee")
	assert.Contains(t, out, "moods: romantic")
	assert.NotContains(t, out, "The Cellar")

	out, err = h.run(t, "search", "--min-rating", "5", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching books.")

	_, err = h.run(t, "search", "--mood", "gloomy", "anything")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	// Rebuilding the same catalog is served from the embedding cache.
	_, err = h.run(t, "build", "--source", h.source, "--progress=false", "--index", "hnsw")
	require.NoError(t, err)
	assert.Equal(t, requests, h.requests.Load()-3, "only the three searches above reached the server")

	out, err = h.run(t, "stats")
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &stats))
	assert.Equal(t, true, stats["ready"])
	assert.Equal(t, 3, stats["books"])
	assert.Equal(t, "hnsw", stats["index_kind"])
	assert.Equal(t, 2, stats["versions"])
	assert.Equal(t, 3, stats["cached_embeddings"])

	out, err = h.run(t, "versions")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestMoodsCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "moods")
	require.NoError(t, err)
	assert.Equal(t, core.MoodLabels(), strings.Split(strings.TrimSpace(out), "\n"))
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						assert.True(t, slog.Default().Enabled(c.Context, tc.expected))
						if tc.expected > slog.LevelDebug {
							assert.False(t, slog.Default().Enabled(c.Context, tc.expected-1))
						}
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		for _, tc := range []string{"DEBUG", "Info", "WaRn", "ERROR"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](t, newApp().Flags, "l")
		assert.Equal(t, "log-level", f.Name)
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
