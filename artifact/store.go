package artifact

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/dataset"
	"github.com/poiesic/moodshelf/vectorindex"
)

const (
	versionsDir  = "versions"
	currentFile  = "CURRENT"
	indexFile    = "index.bin"
	booksFile    = "books.csv"
	manifestFile = "manifest.yaml"
	tmpPrefix    = ".tmp-"
)

// Snapshot is a loaded version: an index and the books at its positions.
// A Snapshot is immutable and safe for concurrent readers.
type Snapshot struct {
	Manifest Manifest
	Index    vectorindex.Index
	Books    []*core.BookRecord
}

// Book returns the book at position, or nil for out-of-range positions.
func (s *Snapshot) Book(position int) *core.BookRecord {
	if position < 0 || position >= len(s.Books) {
		return nil
	}
	return s.Books[position]
}

// BuildInfo carries build details recorded in the manifest.
type BuildInfo struct {
	Model   string
	Source  string
	Skipped int
}

// Store manages the versions under one data directory.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore opens dir, creating it if needed.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, versionsDir), 0755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:    dir,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "artifact-store")
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) versionPath(version string) string {
	return filepath.Join(s.dir, versionsDir, version)
}

// Publish writes idx and books as a new version and makes it current.
// The previous version is left on disk until pruned.
func (s *Store) Publish(ctx context.Context, idx vectorindex.Index, books []*core.BookRecord, info BuildInfo) (*Manifest, error) {
	if idx.Len() != len(books) {
		return nil, fmt.Errorf("%w: index has %d vectors, table has %d rows", ErrCountMismatch, idx.Len(), len(books))
	}

	version := uuid.NewString()
	tmp := filepath.Join(s.dir, versionsDir, tmpPrefix+version)
	if err := os.Mkdir(tmp, 0755); err != nil {
		return nil, err
	}
	published := false
	defer func() {
		if !published {
			os.RemoveAll(tmp)
		}
	}()

	indexSum, err := writeHashed(filepath.Join(tmp, indexFile), func(w io.Writer) error {
		return vectorindex.Write(w, idx)
	})
	if err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	booksSum, err := writeHashed(filepath.Join(tmp, booksFile), func(w io.Writer) error {
		return dataset.WriteMetadata(w, books)
	})
	if err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	m := &Manifest{
		Format:        manifestFormat,
		Version:       version,
		CreatedAt:     s.now(),
		Model:         info.Model,
		IndexKind:     idx.Kind(),
		Dimensions:    idx.Dims(),
		Count:         len(books),
		Skipped:       info.Skipped,
		Source:        info.Source,
		IDChecksum:    idChecksum(books),
		IndexChecksum: indexSum,
		BooksChecksum: booksSum,
	}
	if err := writeManifest(filepath.Join(tmp, manifestFile), m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.Rename(tmp, s.versionPath(version)); err != nil {
		return nil, err
	}
	published = true

	if err := s.setCurrent(version); err != nil {
		return nil, err
	}
	s.logger.Info("published version", "version", version, "books", m.Count, "kind", m.IndexKind)
	return m, nil
}

// setCurrent atomically replaces the CURRENT pointer.
func (s *Store) setCurrent(version string) error {
	tmp := filepath.Join(s.dir, currentFile+tmpPrefix+version)
	if err := writeFileSync(tmp, []byte(version+"\n")); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, currentFile)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Current returns the version named by CURRENT, or core.ErrNotReady when
// nothing has been published.
func (s *Store) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.ErrNotReady
		}
		return "", fmt.Errorf("%w: %w", core.ErrDataUnavailable, err)
	}
	version := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(version); err != nil {
		return "", fmt.Errorf("%w: %w: CURRENT holds %q", core.ErrDataUnavailable, ErrInvalidVersion, version)
	}
	return version, nil
}

// Load loads the current version.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	version, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.LoadVersion(ctx, version)
}

// LoadVersion loads and verifies a specific version. Any missing, corrupt
// or inconsistent file is reported as core.ErrDataUnavailable.
func (s *Store) LoadVersion(ctx context.Context, version string) (*Snapshot, error) {
	snap, err := s.loadVersion(ctx, version)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Error("failed to load version", "version", version, "err", err)
		return nil, fmt.Errorf("%w: version %s: %w", core.ErrDataUnavailable, version, err)
	}
	s.logger.Info("loaded version", "version", version, "books", len(snap.Books), "kind", snap.Index.Kind())
	return snap, nil
}

func (s *Store) loadVersion(ctx context.Context, version string) (*Snapshot, error) {
	if _, err := uuid.Parse(version); err != nil {
		return nil, ErrInvalidVersion
	}
	dir := s.versionPath(version)

	m, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	if m.Version != version {
		return nil, fmt.Errorf("manifest names version %s", m.Version)
	}

	indexData, err := readVerified(filepath.Join(dir, indexFile), m.IndexChecksum)
	if err != nil {
		return nil, err
	}
	idx, err := vectorindex.Read(bytes.NewReader(indexData))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	booksData, err := readVerified(filepath.Join(dir, booksFile), m.BooksChecksum)
	if err != nil {
		return nil, err
	}
	books, err := dataset.ReadMetadata(bytes.NewReader(booksData))
	if err != nil {
		return nil, err
	}

	switch {
	case idx.Len() != len(books):
		return nil, fmt.Errorf("%w: index has %d vectors, table has %d rows", ErrCountMismatch, idx.Len(), len(books))
	case idx.Len() != m.Count:
		return nil, fmt.Errorf("%w: manifest says %d, files hold %d", ErrCountMismatch, m.Count, idx.Len())
	case idx.Dims() != m.Dimensions:
		return nil, fmt.Errorf("%w: index has %d dimensions, manifest says %d", vectorindex.ErrDimensionMismatch, idx.Dims(), m.Dimensions)
	case idChecksum(books) != m.IDChecksum:
		return nil, fmt.Errorf("%w: book ids", ErrChecksumMismatch)
	}

	return &Snapshot{Manifest: *m, Index: idx, Books: books}, nil
}

// Versions lists published versions, newest first.
func (s *Store) Versions() ([]*Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, versionsDir))
	if err != nil {
		return nil, err
	}
	var out []*Manifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		m, err := readManifest(filepath.Join(s.versionPath(e.Name()), manifestFile))
		if err != nil {
			s.logger.Warn("skipping unreadable version", "version", e.Name(), "err", err)
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Manifest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Prune removes all but the newest keep versions. The current version and
// leftover temporary directories are handled too: the former is always
// kept, the latter always removed. Returns the removed version names.
func (s *Store) Prune(keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	current, err := s.Current()
	if err != nil && !errors.Is(err, core.ErrNotReady) {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, versionsDir))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tmpPrefix) {
			if err := os.RemoveAll(s.versionPath(e.Name())); err != nil {
				return nil, err
			}
		}
	}

	versions, err := s.Versions()
	if err != nil {
		return nil, err
	}

	var removed []string
	kept := 0
	for _, m := range versions {
		if m.Version == current || kept < keep {
			kept++
			continue
		}
		if err := os.RemoveAll(s.versionPath(m.Version)); err != nil {
			return removed, err
		}
		removed = append(removed, m.Version)
	}
	if len(removed) > 0 {
		s.logger.Info("pruned versions", "removed", len(removed), "kept", kept)
	}
	return removed, nil
}

// writeHashed writes a file through fn and returns its BLAKE2b-256 digest.
func writeHashed(path string, fn func(w io.Writer) error) (string, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	h := newHash()
	if err := fn(io.MultiWriter(f, h)); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readVerified(path, checksum string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(data)
	if got := hex.EncodeToString(h.Sum(nil)); got != checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, filepath.Base(path))
	}
	return data, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
