package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kbukum/gokit/resilience"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/storage"
)

// Orchestrator is the single consumer of loaded images. It featurizes one
// payload at a time and hands each artifact to the sink.
type Orchestrator struct {
	featurizer featurize.Featurizer
	sink       storage.ArtifactSink
	egress     *Queue[core.LoadResult]
	config     *Config
	progress   *ProgressTracker
	metrics    *pipelineMetrics
	stats      *Stats
	retry      resilience.RetryConfig
	logger     *slog.Logger
}

func newOrchestrator(featurizer featurize.Featurizer, sink storage.ArtifactSink, egress *Queue[core.LoadResult],
	config *Config, progress *ProgressTracker, metrics *pipelineMetrics, stats *Stats, logger *slog.Logger) *Orchestrator {
	logger = logger.With("component", "orchestrator")
	return &Orchestrator{
		featurizer: featurizer,
		sink:       sink,
		egress:     egress,
		config:     config,
		progress:   progress,
		metrics:    metrics,
		stats:      stats,
		retry:      sinkRetryConfig(config, logger),
		logger:     logger,
	}
}

// Run consumes the egress queue until a wait of Config.Timeout passes with
// nothing arriving. It then prints the final progress line and returns nil.
// On cancellation it returns ctx.Err() without a final line.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		result, err := o.egress.Pop(ctx, o.config.Timeout)
		if errors.Is(err, ErrQueueTimeout) {
			o.logger.Debug("no results within timeout, finishing", "timeout", o.config.Timeout)
			o.progress.Finish()
			return nil
		}
		if err != nil {
			return err
		}
		o.handle(ctx, result)
	}
}

// Drain handles exactly n results, waiting as long as it takes for each.
func (o *Orchestrator) Drain(ctx context.Context, n int) error {
	for handled := 0; handled < n; {
		result, err := o.egress.Pop(ctx, o.config.Timeout)
		if errors.Is(err, ErrQueueTimeout) {
			o.logger.Debug("waiting on loaders", "pending", n-handled)
			continue
		}
		if err != nil {
			return err
		}
		o.handle(ctx, result)
		handled++
	}
	return nil
}

func (o *Orchestrator) handle(ctx context.Context, result core.LoadResult) {
	logger := o.logger.With("reference", result.Reference)

	if !result.OK() {
		o.stats.LoadFailed++
		o.metrics.recordLoad(ctx, false)
		logger.Error("failed to load image", "err", result.Err)
		return
	}
	o.stats.Loaded++
	o.metrics.recordLoad(ctx, true)

	artifact := core.NewArtifact(result.Reference, o.featurizer.Name())

	start := time.Now()
	err := o.featurize(ctx, artifact, result.Payload)
	o.metrics.recordFeaturize(ctx, err == nil, time.Since(start))
	if err != nil {
		o.stats.FeaturizeFailed++
		artifact.Fail(err)
		logger.Error("failed to featurize image", "err", err)
	} else {
		o.stats.Featurized++
	}

	o.store(ctx, logger, artifact)

	o.progress.Increment()
	logger.Debug("processed image", "count", o.progress.Count(), "features", len(artifact.Features))
}

// featurize calls the featurizer, converting a panic into an error.
func (o *Orchestrator) featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("featurize panicked: %v", r)
		}
	}()
	return o.featurizer.Featurize(ctx, artifact, payload)
}

func (o *Orchestrator) store(ctx context.Context, logger *slog.Logger, artifact *core.Artifact) {
	err := resilience.RetryFunc(ctx, o.retry, func() error {
		return o.sink.PutArtifact(ctx, artifact)
	})
	if err != nil {
		o.stats.StoreFailed++
		logger.Error("failed to store artifact", "err", err)
		return
	}
	o.stats.Stored++
	o.metrics.recordStored(ctx)
}
