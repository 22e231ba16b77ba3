package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/moodshelf/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB.
type EmbeddingCache struct {
	backend *Backend
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a new EmbeddingCache on top of backend.
// The cache does not own the backend; close the backend separately.
func NewEmbeddingCache(backend *Backend) (storage.EmbeddingCache, error) {
	return newEmbeddingCache(backend), nil
}

func newEmbeddingCache(backend *Backend) *EmbeddingCache {
	return &EmbeddingCache{
		backend: backend,
	}
}

// Close releases resources. EmbeddingCache has no resources to release.
func (c *EmbeddingCache) Close() error {
	return nil
}

// GetEmbeddings returns one entry per text, nil for texts not in the cache.
func (c *EmbeddingCache) GetEmbeddings(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if err := c.backend.checkOpen(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := tx.Get(makeEmbeddingKey(model, text))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				v, _, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				vectors[i] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// PutEmbeddings stores vectors under model. Existing entries are overwritten.
func (c *EmbeddingCache) PutEmbeddings(ctx context.Context, model string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("put embeddings: %d texts but %d vectors", len(texts), len(vectors))
	}
	if err := c.backend.checkOpen(); err != nil {
		return err
	}

	// A WriteBatch splits into as many transactions as needed, so large
	// catalogs don't trip badger's per-transaction size limit.
	wb := c.backend.db.NewWriteBatch()
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			wb.Cancel()
			return err
		}
		if err := wb.Set(makeEmbeddingKey(model, text), storage.MarshalVector(vectors[i])); err != nil {
			wb.Cancel()
			return err
		}
	}
	return wb.Flush()
}

// Count returns the number of cached vectors across all models.
func (c *EmbeddingCache) Count(ctx context.Context) (int, error) {
	if err := c.backend.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEmbeddingPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}
