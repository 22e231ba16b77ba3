package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/moodshelf/ai"
	"github.com/poiesic/moodshelf/artifact"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/mood"
	"github.com/poiesic/moodshelf/vectorindex"
)

// DefaultOversample is the candidate multiplier applied to topK.
const DefaultOversample = 2

// SnapshotSource yields the snapshot queries should run against, or nil
// when nothing has been loaded yet.
type SnapshotSource interface {
	Snapshot() *artifact.Snapshot
}

// Query is one search request.
type Query struct {
	Text      string
	TopK      int
	Mood      string  // "" or "all" for no mood filter
	MinRating float64 // 0 for no rating filter
}

// Engine answers queries against the current snapshot.
type Engine struct {
	source     SnapshotSource
	embedder   ai.Embedder
	oversample int
	adaptive   bool
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithOversample sets how many candidates are fetched per requested result.
func WithOversample(factor int) Option {
	return func(e *Engine) error {
		if factor < 1 {
			return fmt.Errorf("oversample factor must be at least 1, got %d", factor)
		}
		e.oversample = factor
		return nil
	}
}

// WithAdaptiveOversampling keeps doubling the candidate count until topK
// results survive the filters or the index is exhausted.
func WithAdaptiveOversampling(enabled bool) Option {
	return func(e *Engine) error {
		e.adaptive = enabled
		return nil
	}
}

// NewEngine creates a query engine.
func NewEngine(source SnapshotSource, provider ai.AIProvider, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, ErrSnapshotSourceRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		source:     source,
		embedder:   provider.Embedder(),
		oversample: DefaultOversample,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")

	return e, nil
}

// Search runs q and returns at most q.TopK results in descending similarity.
func (e *Engine) Search(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	return e.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (e *Engine) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	filter, err := compileFilter(q)
	if err != nil {
		return nil, err
	}

	snap := e.source.Snapshot()
	if snap == nil {
		return nil, core.ErrNotReady
	}

	monitor.Start(q)

	if strings.TrimSpace(q.Text) == "" {
		e.logger.Debug("empty query, returning no results")
		results := []*core.SearchResult{}
		monitor.Finish(results)
		return results, nil
	}

	vector, err := e.embedQuery(ctx, q.Text, snap.Index.Dims())
	if err != nil {
		return nil, err
	}

	total := snap.Index.Len()
	k := candidateCount(q.TopK, e.oversample, total)
	var results []*core.SearchResult
	reported := 0
	for {
		neighbors, err := snap.Index.Search(vector, k)
		if err != nil {
			return nil, fmt.Errorf("%w: index search: %w", core.ErrDataUnavailable, err)
		}
		monitor.AfterIndexSearch(k, neighbors)

		results = e.collect(snap, neighbors, filter, q.TopK, reported, monitor)
		if !e.adaptive || len(results) >= q.TopK || k >= total {
			break
		}
		// A short pass walked every neighbor.
		reported = len(neighbors)
		k = candidateCount(max(k, 1), 2, total)
		e.logger.Debug("expanding candidate pool", "k", k, "have", len(results), "want", q.TopK)
	}

	e.logger.Debug("search complete", "query_len", len(q.Text), "top_k", q.TopK,
		"mood", q.Mood, "min_rating", q.MinRating, "candidates", k, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

func (e *Engine) embedQuery(ctx context.Context, text string, dims int) ([]float32, error) {
	vector, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		e.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: %w: query has %d dimensions, index has %d",
			core.ErrEmbeddingFailure, ai.ErrDimensionMismatch, len(vector), dims)
	}
	if vectorindex.Norm(vector) == 0 {
		return nil, fmt.Errorf("%w: query embedding is the zero vector", core.ErrEmbeddingFailure)
	}
	return vectorindex.Normalized(vector), nil
}

// candidateCount returns min(n*factor, total) without overflowing.
func candidateCount(n, factor, total int) int {
	if n > total/factor {
		return total
	}
	return n * factor
}

// collect walks neighbors in order and keeps up to topK that pass filter.
// Rejections among the first reported neighbors were already sent to monitor
// by an earlier pass and are not repeated.
func (e *Engine) collect(snap *artifact.Snapshot, neighbors []vectorindex.Neighbor, f filter, topK, reported int, monitor SearchMonitor) []*core.SearchResult {
	results := make([]*core.SearchResult, 0, min(topK, len(neighbors)))
	for i, n := range neighbors {
		if len(results) == topK {
			break
		}
		book := snap.Book(n.Position)
		if book == nil {
			if i >= reported {
				monitor.Rejected(n.Position, RejectNoMatch)
			}
			continue
		}

		scores := mood.Classify(book.Description)
		if reason, ok := f.accept(book, scores); !ok {
			if i >= reported {
				monitor.Rejected(n.Position, reason)
			}
			continue
		}

		results = append(results, &core.SearchResult{
			Book:       book,
			Position:   n.Position,
			Similarity: 1 - n.Distance,
			Moods:      scores,
		})
	}
	return results
}

// filter is a validated mood/rating filter.
type filter struct {
	mood      core.Mood
	byMood    bool
	minRating float64
}

func compileFilter(q Query) (filter, error) {
	if q.TopK <= 0 {
		return filter{}, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidArgument, q.TopK)
	}
	m, byMood, err := core.ParseMoodFilter(q.Mood)
	if err != nil {
		return filter{}, fmt.Errorf("%w: %w", core.ErrInvalidArgument, err)
	}
	if !core.IsValidRating(q.MinRating) {
		return filter{}, fmt.Errorf("%w: min_rating must be within 0..5, got %v", core.ErrInvalidArgument, q.MinRating)
	}
	return filter{mood: m, byMood: byMood, minRating: q.MinRating}, nil
}

// accept applies the mood filter, then the rating filter.
func (f filter) accept(book *core.BookRecord, scores core.MoodScores) (RejectReason, bool) {
	if f.byMood && !mood.Matches(scores, f.mood) {
		return RejectMood, false
	}
	if book.AverageRating < f.minRating {
		return RejectRating, false
	}
	return "", true
}
