package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/storage"
)

// ArtifactRepository implements storage.ArtifactRepository for BadgerDB.
type ArtifactRepository struct {
	backend *Backend
	closed  atomic.Bool
}

var _ storage.ArtifactRepository = (*ArtifactRepository)(nil)

// NewArtifactRepository creates a new ArtifactRepository on an open backend.
// The caller keeps ownership of the backend.
func NewArtifactRepository(backend *Backend) (*ArtifactRepository, error) {
	if backend == nil || backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return &ArtifactRepository{backend: backend}, nil
}

// Close detaches the repository. The backend stays open.
func (r *ArtifactRepository) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *ArtifactRepository) check() error {
	if r.closed.Load() || r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// PutArtifact stores an artifact, replacing any previous artifact with the same ID.
func (r *ArtifactRepository) PutArtifact(ctx context.Context, artifact *core.Artifact) error {
	if err := r.check(); err != nil {
		return err
	}
	if err := core.ValidateArtifact(artifact); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeArtifactKey(artifact.Id), storage.MarshalArtifact(artifact)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetArtifact retrieves a single artifact by ID.
func (r *ArtifactRepository) GetArtifact(ctx context.Context, id core.ID) (*core.Artifact, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	var result *core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readArtifact(tx, makeArtifactKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetArtifacts retrieves multiple artifacts by their IDs.
func (r *ArtifactRepository) GetArtifacts(ctx context.Context, ids ...core.ID) ([]*core.Artifact, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	var result []*core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			artifact, err := readArtifact(tx, makeArtifactKey(id))
			if err != nil {
				return err
			}
			if artifact != nil {
				result = append(result, artifact)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteArtifacts removes artifacts by their IDs.
func (r *ArtifactRepository) DeleteArtifacts(ctx context.Context, ids ...core.ID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeArtifactKey(id)
			if _, err := tx.Get(key); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: %d", storage.ErrNotFound, id)
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ForEachArtifact visits every stored artifact in key order, batchSize at a time.
func (r *ArtifactRepository) ForEachArtifact(ctx context.Context, batchSize int, fn func([]*core.Artifact) error) error {
	if err := r.check(); err != nil {
		return err
	}
	if batchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = artifactKeyPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		batch := make([]*core.Artifact, 0, batchSize)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			artifact, err := decodeItem(iter.Item())
			if err != nil {
				return err
			}
			batch = append(batch, artifact)
			if len(batch) == batchSize {
				if err := fn(batch); err != nil {
					return err
				}
				batch = make([]*core.Artifact, 0, batchSize)
			}
		}
		if len(batch) > 0 {
			return fn(batch)
		}
		return nil
	}, false)
}

// CountArtifacts returns the number of stored artifacts.
func (r *ArtifactRepository) CountArtifacts(ctx context.Context) (int, error) {
	if err := r.check(); err != nil {
		return 0, err
	}
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = artifactKeyPrefix()
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

// FindSimilar finds artifacts from backend whose first embedding is similar
// to the given vector.
func (r *ArtifactRepository) FindSimilar(ctx context.Context, backend string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if len(vector) == 0 || limit < 1 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.SearchResult
	err := r.ForEachArtifact(ctx, 256, func(batch []*core.Artifact) error {
		for _, artifact := range batch {
			if backend != "" && artifact.Backend != backend {
				continue
			}
			embedding := artifact.Embedding()
			if len(embedding) != len(vector) {
				continue
			}
			// Cosine similarity (dot product for normalized vectors)
			similarity := core.DotProduct(vector, embedding)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{Artifact: artifact, Score: similarity})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// readArtifact returns nil without error when the key is absent.
func readArtifact(tx *badger.Txn, key []byte) (*core.Artifact, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return decodeItem(item)
}

func decodeItem(item *badger.Item) (*core.Artifact, error) {
	var artifact *core.Artifact
	err := item.Value(func(val []byte) error {
		var err error
		artifact, err = storage.UnmarshalArtifact(val)
		return err
	})
	return artifact, err
}
