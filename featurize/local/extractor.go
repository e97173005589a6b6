package local

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/imageio"
)

// DenseDim is the length of dense embeddings.
const DenseDim = gridSize * gridSize * channels

// PooledDim is the length of sum-pooled embeddings.
const PooledDim = channels

// Extractor computes one embedding feature per image.
type Extractor struct {
	name      string
	pooled    bool
	targetDim int
	fetcher   *imageio.Fetcher
	logger    *slog.Logger
	closed    atomic.Bool
}

var _ featurize.Featurizer = (*Extractor)(nil)

// Option configures an Extractor.
type Option func(*Extractor)

// WithFetcher sets the fetcher used by Imread.
func WithFetcher(f *imageio.Fetcher) Option {
	return func(e *Extractor) {
		e.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewDense creates an extractor whose embeddings keep spatial layout.
func NewDense(cfg *featurize.Config, opts ...Option) (*Extractor, error) {
	return newExtractor(featurize.BackendDense, false, cfg, opts...)
}

// NewCrow creates an extractor whose embeddings are sum-pooled over space.
func NewCrow(cfg *featurize.Config, opts ...Option) (*Extractor, error) {
	return newExtractor(featurize.BackendCrow, true, cfg, opts...)
}

func newExtractor(name string, pooled bool, cfg *featurize.Config, opts ...Option) (*Extractor, error) {
	if cfg == nil {
		cfg = featurize.DefaultConfig()
		cfg.Backend = name
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Extractor{
		name:      name,
		pooled:    pooled,
		targetDim: cfg.TargetDim,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = imageio.NewFetcher(
			imageio.WithFetchTimeout(cfg.FetchTimeout),
			imageio.WithFetchRetries(cfg.FetchRetries),
			imageio.WithRegion(cfg.Region))
	}
	e.logger = e.logger.With("featurizer", name)
	return e, nil
}

// Name implements featurize.Featurizer.
func (e *Extractor) Name() string {
	return e.name
}

// Imread loads the image and resizes it to the target square.
func (e *Extractor) Imread(ctx context.Context, ref core.Reference) (core.Payload, error) {
	if e.closed.Load() {
		return nil, featurize.ErrClosed
	}
	img, err := e.fetcher.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return imageio.Square(img, e.targetDim)
}

// Featurize appends one normalized embedding to artifact.
func (e *Extractor) Featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) error {
	if e.closed.Load() {
		return featurize.ErrClosed
	}
	if artifact == nil {
		return featurize.ErrNilArtifact
	}
	img, ok := payload.(image.Image)
	if !ok {
		return fmt.Errorf("%w: %T", featurize.ErrUnexpectedPayload, payload)
	}

	fm := buildFeatureMap(img)
	var vec []float32
	if e.pooled {
		vec = fm.sumPool()
	} else {
		vec = fm.flatten()
	}
	artifact.AddFeature(core.NewEmbeddingFeature(core.NormalizeVector(vec)))

	e.logger.Debug("featurized", "reference", artifact.Reference, "dim", len(vec))
	return nil
}

// Close implements featurize.Featurizer.
func (e *Extractor) Close() error {
	e.closed.Store(true)
	return nil
}
