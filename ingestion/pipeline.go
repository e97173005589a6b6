package ingestion

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/storage"
)

// Pipeline runs references through loading, featurization and storage.
// A pipeline runs once; the featurizer is closed when the run ends.
type Pipeline struct {
	featurizer    featurize.Featurizer
	sink          storage.ArtifactSink
	config        *Config
	progress      io.Writer
	meterProvider metric.MeterProvider
	metrics       *pipelineMetrics
	logger        *slog.Logger
	used          atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConfig replaces the default configuration. The config is validated.
func WithConfig(config *Config) Option {
	return func(p *Pipeline) error {
		if err := config.Validate(); err != nil {
			return err
		}
		p.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithProgressWriter sets where progress lines are printed.
// Default is os.Stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		if w == nil {
			w = io.Discard
		}
		p.progress = w
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider.
// Default is the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Pipeline) error {
		p.meterProvider = mp
		return nil
	}
}

// NewPipeline creates a pipeline that featurizes with featurizer and stores
// artifacts in sink.
func NewPipeline(featurizer featurize.Featurizer, sink storage.ArtifactSink, opts ...Option) (*Pipeline, error) {
	if featurizer == nil {
		return nil, ErrFeaturizerRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}

	p := &Pipeline{
		featurizer: featurizer,
		sink:       sink,
		config:     DefaultConfig(),
		progress:   os.Stderr,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	metrics, err := newPipelineMetrics(p.meterProvider, featurizer.Name())
	if err != nil {
		return nil, err
	}
	p.metrics = metrics

	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *Config {
	return p.config
}

type run struct {
	stats    *Stats
	logger   *slog.Logger
	egress   *Queue[core.LoadResult]
	loaders  *LoaderPool
	progress *ProgressTracker
	orch     *Orchestrator
}

func (p *Pipeline) begin() (*run, error) {
	if p.used.Swap(true) {
		return nil, ErrPipelineClosed
	}

	stats := &Stats{RunID: uuid.New()}
	logger := p.logger.With("run_id", stats.RunID.String(), "backend", p.featurizer.Name())
	egress := NewQueue[core.LoadResult]()

	loaders, err := NewLoaderPool(p.featurizer, egress, p.config.IOThreads, p.config.Timeout, logger)
	if err != nil {
		return nil, err
	}

	progress := NewProgressTracker(p.progress, p.config.PrintInterval)
	return &run{
		stats:    stats,
		logger:   logger,
		egress:   egress,
		loaders:  loaders,
		progress: progress,
		orch:     newOrchestrator(p.featurizer, p.sink, egress, p.config, progress, p.metrics, stats, logger),
	}, nil
}

func (p *Pipeline) end(r *run, err error) (*Stats, error) {
	r.loaders.Release()
	r.stats.Elapsed = r.progress.Elapsed()

	if closeErr := p.featurizer.Close(); closeErr != nil {
		r.logger.Warn("error closing featurizer", "err", closeErr)
	}

	if err != nil {
		r.logger.Info("run interrupted", "err", err, "processed", r.stats.Processed())
		return r.stats, err
	}
	r.logger.Info("run complete",
		"read", r.stats.Read,
		"featurized", r.stats.Featurized,
		"load_failed", r.stats.LoadFailed,
		"featurize_failed", r.stats.FeaturizeFailed,
		"stored", r.stats.Stored,
		"elapsed", r.stats.Elapsed)
	return r.stats, nil
}

// Run streams references, one per line, from src until the input has been
// idle for Config.Timeout. Progress lines are written every PrintInterval
// images plus one final line on exhaustion. If ctx is cancelled Run returns
// ctx.Err() and no final line is written.
//
// References still being fetched when the timeout expires are abandoned.
// A stream that stalls without reaching EOF counts as exhausted. If src is
// an io.Closer, Run closes it before returning so that the reader goroutine
// is not left blocked on it; otherwise that goroutine lives until src
// returns from its pending Read.
func (p *Pipeline) Run(ctx context.Context, src io.Reader) (*Stats, error) {
	r, err := p.begin()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ingress := NewQueue[core.Reference]()
	reader := NewStreamReader(src, ingress, r.logger)

	r.logger.Info("starting run", "io_threads", p.config.IOThreads, "timeout", p.config.Timeout)
	r.progress.Start()
	reader.Start(ctx)
	if err := r.loaders.Start(ctx, ingress); err != nil {
		cancel()
		r.loaders.Wait()
		return p.end(r, err)
	}

	err = r.orch.Run(ctx)

	cancel()
	if closer, ok := src.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			r.logger.Debug("error closing reference stream", "err", cerr)
		}
	}
	r.loaders.Wait()
	r.stats.Read = reader.Count()
	if abandoned := ingress.Len() + r.egress.Len(); abandoned > 0 && err == nil {
		r.logger.Warn("references left unprocessed at shutdown", "count", abandoned)
	}
	return p.end(r, err)
}

// RunBatch processes refs in chunks of Config.ChunkSize. Each chunk is
// loaded in parallel and featurized before the next chunk is read.
func (p *Pipeline) RunBatch(ctx context.Context, refs iter.Seq[core.Reference]) (*Stats, error) {
	r, err := p.begin()
	if err != nil {
		return nil, err
	}

	r.logger.Info("starting batch run", "io_threads", p.config.IOThreads, "chunk_size", p.config.ChunkSize)
	r.progress.Start()

	for chunk := range Chunk(refs, p.config.ChunkSize) {
		r.stats.Read += len(chunk)
		r.logger.Debug("loading chunk", "size", len(chunk))

		loadErr := make(chan error, 1)
		go func() { loadErr <- r.loaders.LoadBatch(ctx, chunk) }()

		err = r.orch.Drain(ctx, len(chunk))
		if lerr := <-loadErr; err == nil && lerr != nil {
			err = lerr
		}
		if err != nil {
			break
		}
	}

	if err == nil {
		r.progress.Finish()
	} else if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("batch run failed", "err", err)
	}
	return p.end(r, err)
}
