// Package redis implements storage.ArtifactRepository on Redis.
//
// Each artifact is stored under <prefix>:<id> in its binary form. Writes are
// plain SETs, so storing an artifact twice leaves one record.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/storage"
)

// DefaultKeyPrefix namespaces artifact keys.
const DefaultKeyPrefix = "imgfeat:artifact"

// Config holds Redis connection settings.
type Config struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("redis: addr is required")
	}
	if c.DB < 0 {
		return errors.New("redis: db cannot be negative")
	}
	return nil
}

// Store implements storage.ArtifactRepository on Redis.
type Store struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
	closed atomic.Bool
}

var _ storage.ArtifactRepository = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &Store{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		logger: slog.Default().With("component", "redis-store", "addr", cfg.Addr),
	}, nil
}

func (s *Store) key(id core.ID) string {
	return s.prefix + ":" + strconv.FormatUint(uint64(id), 10)
}

func (s *Store) check() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Close closes the client connection pool.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.rdb.Close()
}

// PutArtifact implements storage.ArtifactSink.
func (s *Store) PutArtifact(ctx context.Context, artifact *core.Artifact) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := core.ValidateArtifact(artifact); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(artifact.Id), storage.MarshalArtifact(artifact), 0).Err(); err != nil {
		return fmt.Errorf("redis set %d: %w", artifact.Id, err)
	}
	return nil
}

// GetArtifact retrieves a single artifact by ID.
func (s *Store) GetArtifact(ctx context.Context, id core.ID) (*core.Artifact, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %d: %w", id, err)
	}
	return storage.UnmarshalArtifact(data)
}

// GetArtifacts retrieves the artifacts that exist among ids, in the order given.
func (s *Store) GetArtifacts(ctx context.Context, ids ...core.ID) ([]*core.Artifact, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	return s.mget(ctx, keys)
}

func (s *Store) mget(ctx context.Context, keys []string) ([]*core.Artifact, error) {
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	var result []*core.Artifact
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		artifact, err := storage.UnmarshalArtifact([]byte(str))
		if err != nil {
			return nil, err
		}
		result = append(result, artifact)
	}
	return result, nil
}

// DeleteArtifacts removes artifacts by their IDs.
// Returns ErrNotFound if any artifact doesn't exist; the others are still removed.
func (s *Store) DeleteArtifacts(ctx context.Context, ids ...core.ID) error {
	if err := s.check(); err != nil {
		return err
	}
	var missing []string
	for _, id := range ids {
		n, err := s.rdb.Del(ctx, s.key(id)).Result()
		if err != nil {
			return fmt.Errorf("redis del %d: %w", id, err)
		}
		if n == 0 {
			missing = append(missing, strconv.FormatUint(uint64(id), 10))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}

// ForEachArtifact scans the key space and visits artifacts batchSize at a time.
// Order is unspecified.
func (s *Store) ForEachArtifact(ctx context.Context, batchSize int, fn func([]*core.Artifact) error) error {
	if err := s.check(); err != nil {
		return err
	}
	if batchSize < 1 {
		return fmt.Errorf("%w: batch size must be positive", storage.ErrInvalidQuery)
	}

	keys := make([]string, 0, batchSize)
	flush := func() error {
		batch, err := s.mget(ctx, keys)
		keys = keys[:0]
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		return fn(batch)
	}

	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", int64(batchSize)).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) > 0 {
		return flush()
	}
	return nil
}

// CountArtifacts returns the number of stored artifacts.
func (s *Store) CountArtifacts(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	count := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 512).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

// FindSimilar scans every artifact from backend and ranks those whose
// embedding scores at least minSimilarity against vector.
func (s *Store) FindSimilar(ctx context.Context, backend string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if len(vector) == 0 || limit < 1 {
		return nil, storage.ErrInvalidQuery
	}
	var results []*core.SearchResult
	err := s.ForEachArtifact(ctx, 256, func(batch []*core.Artifact) error {
		for _, artifact := range batch {
			if backend != "" && artifact.Backend != backend {
				continue
			}
			embedding := artifact.Embedding()
			if len(embedding) != len(vector) {
				continue
			}
			if score := core.DotProduct(vector, embedding); score >= minSimilarity {
				results = append(results, &core.SearchResult{Artifact: artifact, Score: score})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	s.logger.Debug("similarity scan", "matches", len(results))
	return results, nil
}
