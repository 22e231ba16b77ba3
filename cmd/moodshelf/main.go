// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/moodshelf/ai"
	"github.com/poiesic/moodshelf/vectorindex"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	defaults := ai.DefaultConfig()

	return &cli.App{
		Name:    "moodshelf",
		Usage:   "Semantic book search with mood and rating filters",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MOODSHELF_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding index versions and the embedding cache",
				Value:   "./data",
				EnvVars: []string{"MOODSHELF_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "OpenAI-compatible embedding service URL",
				Value:   defaults.EmbeddingHost,
				EnvVars: []string{"MOODSHELF_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   defaults.EmbeddingModel,
				EnvVars: []string{"MOODSHELF_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "embedding-token",
				Usage:   "API token for the embedding service",
				EnvVars: []string{"MOODSHELF_EMBEDDING_TOKEN"},
			},
			&cli.IntFlag{
				Name:    "dimensions",
				Usage:   "Embedding length produced by the model (0 to accept any)",
				Value:   defaults.Dimensions,
				EnvVars: []string{"MOODSHELF_DIMENSIONS"},
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Number of descriptions per embedding request",
				Value:   defaults.BatchSize,
				EnvVars: []string{"MOODSHELF_BATCH_SIZE"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build and publish a new index from a raw book catalog",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Path to the raw catalog CSV",
						Required: true,
						EnvVars:  []string{"MOODSHELF_SOURCE"},
					},
					&cli.StringFlag{
						Name:  "index",
						Usage: "Index kind (flat, hnsw)",
						Value: string(vectorindex.KindFlat),
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent embedding requests",
						Value: max(1, runtime.NumCPU()/2),
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Attempts per embedding batch",
						Value: 1,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "cache",
						Usage: "Reuse embeddings from previous builds",
						Value: true,
					},
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Versions to keep after publishing (0 keeps all)",
						Value: 3,
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report embedding progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the current index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.StringFlag{
						Name:    "mood",
						Aliases: []string{"m"},
						Usage:   "Only return books with this mood (see 'moods')",
					},
					&cli.Float64Flag{
						Name:    "min-rating",
						Aliases: []string{"r"},
						Usage:   "Minimum average rating (0-5)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				}, engineFlags()...),
			},
			{
				Name:   "moods",
				Usage:  "List supported mood labels",
				Action: moodsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show details of the current index",
				Action: statsCommand,
			},
			{
				Name:   "versions",
				Usage:  "List published index versions",
				Action: versionsCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"MOODSHELF_ADDR"},
					},
				}, engineFlags()...),
			},
			{
				Name:   "mcp",
				Usage:  "Serve search tools over MCP on stdio",
				Action: mcpCommand,
				Flags:  engineFlags(),
			},
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "oversample",
			Usage: "Candidates fetched per requested result before filtering",
			Value: 2,
		},
		&cli.BoolFlag{
			Name:  "adaptive",
			Usage: "Widen the candidate pool until enough results pass the filters",
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
