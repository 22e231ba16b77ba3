package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/moodshelf"
	"github.com/poiesic/moodshelf/ai"
	"github.com/poiesic/moodshelf/api"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/indexer"
	"github.com/poiesic/moodshelf/mcpserver"
	"github.com/poiesic/moodshelf/mood"
	"github.com/poiesic/moodshelf/search"
	"github.com/poiesic/moodshelf/vectorindex"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// openLibrary opens the data directory with the provider described by the
// global flags.
func openLibrary(c *cli.Context, opts ...moodshelf.Option) (*moodshelf.Library, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithToken(c.String("embedding-token")),
		ai.WithDimensions(c.Int("dimensions")),
		ai.WithBatchSize(c.Int("batch-size")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	lib, err := moodshelf.Open(c.String("data-dir"), append([]moodshelf.Option{moodshelf.WithAIConfig(aiConfig)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	return lib, nil
}

// loadLibrary opens the library and loads the current index. A missing
// index is only an error when required is set.
func loadLibrary(ctx context.Context, c *cli.Context, required bool, opts ...moodshelf.Option) (*moodshelf.Library, error) {
	lib, err := openLibrary(c, opts...)
	if err != nil {
		return nil, err
	}
	if err := lib.Load(ctx); err != nil {
		if !moodshelf.IsNotReady(err) || required {
			lib.Close()
			if moodshelf.IsNotReady(err) {
				return nil, fmt.Errorf("%w: run 'moodshelf build' first", err)
			}
			return nil, err
		}
		slog.Warn("no index published yet; queries will fail until a build completes", "data_dir", c.String("data-dir"))
	}
	return lib, nil
}

func engineOptions(c *cli.Context) []search.Option {
	return []search.Option{
		search.WithOversample(c.Int("oversample")),
		search.WithAdaptiveOversampling(c.Bool("adaptive")),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	kind, err := vectorindex.ParseKind(c.String("index"))
	if err != nil {
		return err
	}
	if c.Int("max-retries") < 1 {
		return fmt.Errorf("max-retries must be greater than 0")
	}
	if c.Int("workers") < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}

	builderOpts := []indexer.Option{
		indexer.WithIndexKind(kind),
		indexer.WithPoolSize(c.Int("workers")),
		indexer.WithBatchSize(c.Int("batch-size")),
		indexer.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	}
	if c.Bool("progress") {
		builderOpts = append(builderOpts, indexer.WithProgress(c.App.ErrWriter))
	}

	lib, err := openLibrary(c,
		moodshelf.WithEmbeddingCache(c.Bool("cache")),
		moodshelf.WithKeepVersions(c.Int("keep")),
		moodshelf.WithBuilderOptions(builderOpts...),
	)
	if err != nil {
		return err
	}
	defer lib.Close()

	source := c.String("source")
	fmt.Fprintf(c.App.ErrWriter, "Source: %s\n", source)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	report, err := lib.Build(ctx, source)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	m := report.Manifest
	fmt.Fprintf(c.App.Writer, "Published version %s\n", m.Version)
	fmt.Fprintf(c.App.Writer, "  books:      %d (%d skipped)\n", m.Count, m.Skipped)
	fmt.Fprintf(c.App.Writer, "  index:      %s, %d dimensions\n", m.IndexKind, m.Dimensions)
	fmt.Fprintf(c.App.Writer, "  cache hits: %d\n", report.CacheHits)
	fmt.Fprintf(c.App.Writer, "  elapsed:    %s\n", report.Elapsed.Round(time.Millisecond))
	if len(report.Pruned) > 0 {
		fmt.Fprintf(c.App.Writer, "  pruned:     %s\n", strings.Join(report.Pruned, ", "))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	lib, err := loadLibrary(ctx, c, true)
	if err != nil {
		return err
	}
	defer lib.Close()

	engine, err := lib.NewEngine(engineOptions(c)...)
	if err != nil {
		return err
	}

	results, err := engine.Search(ctx, search.Query{
		Text:      query,
		TopK:      c.Int("top-k"),
		Mood:      c.String("mood"),
		MinRating: c.Float64("min-rating"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching books.")
		return
	}
	for i, r := range results {
		b := r.Book
		fmt.Fprintf(w, "%d. %s by %s [rating %.2f, similarity %.3f]\n", i+1, b.Title, b.Authors, b.AverageRating, r.Similarity)
		if moods := topMoods(r.Moods); len(moods) > 0 {
			fmt.Fprintf(w, "   moods: %s\n", strings.Join(moods, ", "))
		}
	}
}

// topMoods lists the labels that would pass a mood filter.
func topMoods(scores core.MoodScores) []string {
	var out []string
	for _, m := range core.Moods() {
		if mood.Matches(scores, m) {
			out = append(out, m.String())
		}
	}
	return out
}

func moodsCommand(c *cli.Context) error {
	for _, label := range core.MoodLabels() {
		fmt.Fprintln(c.App.Writer, label)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	lib, err := loadLibrary(ctx, c, false, moodshelf.WithEmbeddingCache(true))
	if err != nil {
		return err
	}
	defer lib.Close()

	stats, err := lib.Stats(ctx)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(c.App.Writer)
	defer enc.Close()
	return enc.Encode(stats)
}

func versionsCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	versions, err := lib.Versions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(c.App.Writer, "No versions published.")
		return nil
	}
	for _, m := range versions {
		fmt.Fprintf(c.App.Writer, "%s  %s  %s  %d books\n", m.Version, m.CreatedAt.Format("2006-01-02 15:04:05"), m.IndexKind, m.Count)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	lib, err := loadLibrary(ctx, c, false)
	if err != nil {
		return err
	}
	defer lib.Close()

	server, err := api.NewServer(lib, api.WithSearchOptions(engineOptions(c)...))
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx, c.String("addr"))
}

func mcpCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	lib, err := loadLibrary(ctx, c, false)
	if err != nil {
		return err
	}
	defer lib.Close()

	engine, err := lib.NewEngine(engineOptions(c)...)
	if err != nil {
		return err
	}
	err = mcpserver.Serve(ctx, mcpserver.NewServer(engine, version, slog.Default()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
