package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/moodshelf/ai"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/dataset"
	"github.com/poiesic/moodshelf/storage"
	"github.com/poiesic/moodshelf/vectorindex"
)

const (
	defaultBatchSize      = 64
	defaultRetryBaseDelay = 500 * time.Millisecond
)

// Builder builds vector indexes from book catalogs.
type Builder struct {
	provider       ai.AIProvider
	cache          storage.EmbeddingCache
	pool           *ants.Pool
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	progress       io.Writer
	kind           vectorindex.Kind
	hnswOpts       []vectorindex.HNSWOption
	logger         *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithPoolSize sets the number of batches embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithBatchSize sets how many descriptions go into one embedding call.
func WithBatchSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			return fmt.Errorf("batch size must be at least 1, got %d", size)
		}
		b.batchSize = size
		return nil
	}
}

// WithRetry makes each embedding call try up to maxAttempts times with
// exponential backoff starting at baseDelay. Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(b *Builder) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxAttempts = maxAttempts
		b.retryBaseDelay = baseDelay
		return nil
	}
}

// WithProgress writes a progress line to w while embedding.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// WithCache reuses and records vectors in cache.
func WithCache(cache storage.EmbeddingCache) Option {
	return func(b *Builder) error {
		b.cache = cache
		return nil
	}
}

// WithIndexKind selects the index implementation. Default is flat.
func WithIndexKind(kind vectorindex.Kind, opts ...vectorindex.HNSWOption) Option {
	return func(b *Builder) error {
		if _, err := vectorindex.ParseKind(string(kind)); err != nil {
			return err
		}
		b.kind = kind
		b.hnswOpts = opts
		return nil
	}
}

// NewBuilder creates a Builder around provider.
// Call Release when the builder is no longer needed.
func NewBuilder(provider ai.AIProvider, opts ...Option) (*Builder, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	b := &Builder{
		provider:       provider,
		batchSize:      defaultBatchSize,
		maxAttempts:    1,
		retryBaseDelay: defaultRetryBaseDelay,
		kind:           vectorindex.KindFlat,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			b.Release()
			return nil, err
		}
	}

	if b.pool == nil {
		poolSize := max(runtime.NumCPU()/2, 1)
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, err
		}
		b.pool = pool
	}
	b.logger = b.logger.With("component", "indexer")

	return b, nil
}

// Release releases the worker pool.
// The builder should not be used after calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Result is the outcome of a successful build.
type Result struct {
	Index     vectorindex.Index
	Books     []*core.BookRecord // Books[i] is the book at index position i
	Model     string
	Skipped   int // raw rows dropped by cleaning
	CacheHits int
	Elapsed   time.Duration
}

// Clean keeps the complete rows of raw in their original order.
func Clean(raw []dataset.RawBook) (books []*core.BookRecord, skipped int) {
	books = make([]*core.BookRecord, 0, len(raw))
	for i := range raw {
		rec := raw[i].Record()
		if err := core.ValidateBookRecord(rec); err != nil {
			skipped++
			continue
		}
		books = append(books, rec)
	}
	return books, skipped
}

// BuildFile reads the raw catalog at path and builds it.
func (b *Builder) BuildFile(ctx context.Context, path string) (*Result, error) {
	raw, err := dataset.ReadRawFile(path)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, raw)
}

// Build cleans raw, embeds every remaining description and indexes the
// normalized vectors in position order.
func (b *Builder) Build(ctx context.Context, raw []dataset.RawBook) (*Result, error) {
	start := time.Now()

	books, skipped := Clean(raw)
	b.logger.Info("cleaned catalog", "rows", len(raw), "kept", len(books), "skipped", skipped)
	if len(books) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrDataUnavailable, ErrNoBooks)
	}

	texts := make([]string, len(books))
	for i, book := range books {
		texts[i] = book.Description
	}

	vectors, hits, err := b.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	dims := b.provider.Dimensions()
	if dims <= 0 {
		dims = len(vectors[0])
	}
	if dims == 0 {
		return nil, fmt.Errorf("%w: %w: empty vectors", core.ErrEmbeddingFailure, ai.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: %w: book %d has %d dimensions, want %d",
				core.ErrEmbeddingFailure, ai.ErrDimensionMismatch, i, len(v), dims)
		}
		vectorindex.Normalize(v)
	}

	idx, err := vectorindex.New(b.kind, dims, b.hnswOpts...)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(vectors...); err != nil {
		return nil, err
	}

	result := &Result{
		Index:     idx,
		Books:     books,
		Model:     b.provider.ModelID(),
		Skipped:   skipped,
		CacheHits: hits,
		Elapsed:   time.Since(start),
	}
	b.logger.Info("built index", "kind", idx.Kind(), "books", idx.Len(), "dims", dims,
		"cache_hits", hits, "elapsed", result.Elapsed)
	return result, nil
}

// embedAll returns one raw vector per text, in order.
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float32, int, error) {
	model := b.provider.ModelID()
	vectors := make([][]float32, len(texts))

	if b.cache != nil {
		cached, err := b.cache.GetEmbeddings(ctx, model, texts)
		if err != nil {
			b.logger.Warn("embedding cache lookup failed, embedding everything", "err", err)
		} else {
			copy(vectors, cached)
		}
	}

	var missing []int
	for i, v := range vectors {
		if v == nil {
			missing = append(missing, i)
		}
	}
	hits := len(texts) - len(missing)
	if hits > 0 {
		b.logger.Debug("embedding cache hits", "hits", hits, "missing", len(missing))
	}

	if err := b.embedMissing(ctx, texts, missing, vectors); err != nil {
		return nil, 0, err
	}

	if b.cache != nil && len(missing) > 0 {
		newTexts := make([]string, len(missing))
		newVectors := make([][]float32, len(missing))
		for j, i := range missing {
			newTexts[j] = texts[i]
			newVectors[j] = vectors[i]
		}
		if err := b.cache.PutEmbeddings(ctx, model, newTexts, newVectors); err != nil {
			b.logger.Warn("failed to update embedding cache", "err", err)
		}
	}

	return vectors, hits, nil
}

// embedMissing fills vectors[i] for every i in missing. The first failing
// batch cancels the rest.
func (b *Builder) embedMissing(ctx context.Context, texts []string, missing []int, vectors [][]float32) error {
	if len(missing) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := newProgressTracker(b.progress, len(missing), b.batchSize)
	embedder := b.provider.Embedder()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for lo := 0; lo < len(missing); lo += b.batchSize {
		batch := missing[lo:min(lo+b.batchSize, len(missing))]
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()

			batchTexts := make([]string, len(batch))
			for j, i := range batch {
				batchTexts[j] = texts[i]
			}

			var out [][]float32
			err := retryWithBackoff(ctx, b.logger, func() error {
				var err error
				out, err = embedder.EmbedTexts(ctx, batchTexts)
				return err
			}, b.maxAttempts, b.retryBaseDelay)
			if err != nil {
				fail(err)
				return
			}
			if len(out) != len(batch) {
				fail(fmt.Errorf("%w: want %d vectors, got %d", ai.ErrNoEmbedding, len(batch), len(out)))
				return
			}
			for j, v := range out {
				if vectorindex.Norm(v) == 0 {
					fail(fmt.Errorf("%w: book %d", ErrZeroVector, batch[j]))
					return
				}
			}
			for j, i := range batch {
				vectors[i] = out[j]
			}
			progress.add(len(batch))
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		b.logger.Error("embedding failed, aborting build", "err", firstErr)
		if errors.Is(firstErr, context.Canceled) || errors.Is(firstErr, context.DeadlineExceeded) {
			return firstErr
		}
		return fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, firstErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	progress.finish()
	return nil
}
