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

// Package moodshelf wires the embedding provider, the embedding cache, the
// artifact store and the query engine into one handle.
package moodshelf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/moodshelf/ai"
	"github.com/poiesic/moodshelf/ai/openai"
	"github.com/poiesic/moodshelf/artifact"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/indexer"
	"github.com/poiesic/moodshelf/search"
	"github.com/poiesic/moodshelf/storage"
	"github.com/poiesic/moodshelf/storage/badger"
)

const cacheDir = "cache"

// Library owns the process-wide state: the provider, the optional cache
// and the snapshot queries run against. Searches read the snapshot without
// locking; Build replaces it atomically once a new version is published.
type Library struct {
	store    *artifact.Store
	provider ai.AIProvider
	backend  *badger.Backend
	cache    storage.EmbeddingCache
	snapshot atomic.Pointer[artifact.Snapshot]
	buildMu  sync.Mutex
	options  *libraryOptions
	logger   *slog.Logger
}

// Option configures a Library.
type Option func(*libraryOptions)

type libraryOptions struct {
	aiConfig     *ai.Config
	provider     ai.AIProvider
	cache        bool
	keepVersions int
	builderOpts  []indexer.Option
	logger       *slog.Logger
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(config *ai.Config) Option {
	return func(o *libraryOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of constructing one from the AI config.
// The Library takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *libraryOptions) {
		o.provider = provider
	}
}

// WithEmbeddingCache enables the badger embedding cache under <dataDir>/cache.
func WithEmbeddingCache(enabled bool) Option {
	return func(o *libraryOptions) {
		o.cache = enabled
	}
}

// WithKeepVersions prunes all but the newest n versions after each build.
// Zero disables pruning.
func WithKeepVersions(n int) Option {
	return func(o *libraryOptions) {
		o.keepVersions = n
	}
}

// WithBuilderOptions passes options through to every index build.
func WithBuilderOptions(opts ...indexer.Option) Option {
	return func(o *libraryOptions) {
		o.builderOpts = append(o.builderOpts, opts...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *libraryOptions) {
		o.logger = logger
	}
}

// Open prepares a library rooted at dataDir. Nothing is loaded until Load
// or Build is called, so a fresh directory opens fine and is simply not
// ready.
func Open(dataDir string, opts ...Option) (*Library, error) {
	options := &libraryOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	store, err := artifact.NewStore(dataDir, artifact.WithLogger(options.logger))
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}

	l := &Library{
		store:   store,
		options: options,
		logger:  options.logger.With("component", "library"),
	}

	if options.cache {
		backend, err := badger.OpenBackend(filepath.Join(dataDir, cacheDir), false)
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		cache, err := badger.NewEmbeddingCache(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		l.backend = backend
		l.cache = cache
	}

	l.provider = options.provider
	if l.provider == nil {
		provider, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			l.closeCache()
			return nil, err
		}
		l.provider = provider
	}

	return l, nil
}

// Load reads the current version from disk and makes it the active snapshot.
// It waits for any Build in progress. Returns an error wrapping core.ErrNotReady if nothing was ever published.
func (l *Library) Load(ctx context.Context) error {
	l.buildMu.Lock()
	defer l.buildMu.Unlock()

	snap, err := l.store.Load(ctx)
	if err != nil {
		return err
	}
	if snap.Manifest.Model != l.provider.ModelID() {
		l.logger.Warn("index was built with a different embedding model",
			"index_model", snap.Manifest.Model, "provider_model", l.provider.ModelID())
	}
	l.snapshot.Store(snap)
	l.logger.Info("loaded version", "version", snap.Manifest.Version, "books", len(snap.Books))
	return nil
}

// Ready reports whether a snapshot is available for queries.
func (l *Library) Ready() bool {
	return l.snapshot.Load() != nil
}

// Snapshot returns the active snapshot, or nil when not ready.
func (l *Library) Snapshot() *artifact.Snapshot {
	return l.snapshot.Load()
}

// BuildReport summarizes a successful Build.
type BuildReport struct {
	Manifest  *artifact.Manifest
	CacheHits int
	Elapsed   time.Duration
	Pruned    []string
}

// Build indexes the raw catalog at sourcePath, publishes it as a new
// version and swaps it in. Concurrent searches keep using the previous
// snapshot until the swap; on failure the previous snapshot stays active.
func (l *Library) Build(ctx context.Context, sourcePath string) (*BuildReport, error) {
	l.buildMu.Lock()
	defer l.buildMu.Unlock()

	opts := []indexer.Option{indexer.WithLogger(l.options.logger)}
	if l.cache != nil {
		opts = append(opts, indexer.WithCache(l.cache))
	}
	opts = append(opts, l.options.builderOpts...)

	builder, err := indexer.NewBuilder(l.provider, opts...)
	if err != nil {
		return nil, err
	}
	defer builder.Release()

	result, err := builder.BuildFile(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	manifest, err := l.store.Publish(ctx, result.Index, result.Books, artifact.BuildInfo{
		Model:   result.Model,
		Source:  sourcePath,
		Skipped: result.Skipped,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: %w", err)
	}

	l.snapshot.Store(&artifact.Snapshot{
		Manifest: *manifest,
		Index:    result.Index,
		Books:    result.Books,
	})

	report := &BuildReport{
		Manifest:  manifest,
		CacheHits: result.CacheHits,
		Elapsed:   result.Elapsed,
	}
	if l.options.keepVersions > 0 {
		pruned, err := l.store.Prune(l.options.keepVersions)
		if err != nil {
			l.logger.Error("error pruning versions", "err", err)
		}
		report.Pruned = pruned
	}
	return report, nil
}

// Stats describes the active snapshot and the data directory.
type Stats struct {
	Ready            bool      `json:"ready" yaml:"ready"`
	Version          string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	Model            string    `json:"model,omitempty" yaml:"model,omitempty"`
	IndexKind        string    `json:"index_kind,omitempty" yaml:"index_kind,omitempty"`
	Dimensions       int       `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Books            int       `json:"books" yaml:"books"`
	Skipped          int       `json:"skipped" yaml:"skipped"`
	Versions         int       `json:"versions" yaml:"versions"`
	CachedEmbeddings int       `json:"cached_embeddings" yaml:"cached_embeddings"`
}

// Stats reports on the active snapshot and the data directory.
func (l *Library) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if snap := l.snapshot.Load(); snap != nil {
		m := snap.Manifest
		stats.Ready = true
		stats.Version = m.Version
		stats.CreatedAt = m.CreatedAt
		stats.Model = m.Model
		stats.IndexKind = string(m.IndexKind)
		stats.Dimensions = m.Dimensions
		stats.Books = len(snap.Books)
		stats.Skipped = m.Skipped
	}

	versions, err := l.store.Versions()
	if err != nil {
		return nil, err
	}
	stats.Versions = len(versions)

	if l.cache != nil {
		n, err := l.cache.Count(ctx)
		if err != nil {
			return nil, err
		}
		stats.CachedEmbeddings = n
	}
	return stats, nil
}

// Versions lists published versions, newest first.
func (l *Library) Versions() ([]*artifact.Manifest, error) {
	return l.store.Versions()
}

// Provider returns the embedding provider.
func (l *Library) Provider() ai.AIProvider {
	return l.provider
}

// NewEngine creates a query engine over this library's snapshots.
func (l *Library) NewEngine(opts ...search.Option) (*search.Engine, error) {
	return search.NewEngine(l, l.provider, append([]search.Option{search.WithLogger(l.options.logger)}, opts...)...)
}

// Close releases the provider and the cache.
func (l *Library) Close() error {
	var errs []error
	if err := l.provider.Close(); err != nil {
		l.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := l.closeCache(); err != nil {
		l.logger.Error("error closing embedding cache", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l *Library) closeCache() error {
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Close(); err != nil {
		return err
	}
	return l.backend.Close()
}

// IsNotReady reports whether err means no index has been built yet.
func IsNotReady(err error) bool {
	return errors.Is(err, core.ErrNotReady)
}
