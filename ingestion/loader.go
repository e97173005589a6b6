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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
)

// LoaderPool decodes references concurrently with Featurizer.Imread and
// pushes a LoadResult for each one onto the egress queue.
type LoaderPool struct {
	pool        *ants.Pool
	featurizer  featurize.Featurizer
	egress      *Queue[core.LoadResult]
	size        int
	idleTimeout time.Duration
	logger      *slog.Logger
	running     atomic.Int32
	wg          sync.WaitGroup
}

// NewLoaderPool creates a pool of size workers. idleTimeout is how long a
// streaming worker waits for a reference before exiting.
func NewLoaderPool(featurizer featurize.Featurizer, egress *Queue[core.LoadResult], size int, idleTimeout time.Duration, logger *slog.Logger) (*LoaderPool, error) {
	if featurizer == nil {
		return nil, ErrFeaturizerRequired
	}
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &LoaderPool{
		pool:        pool,
		featurizer:  featurizer,
		egress:      egress,
		size:        size,
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "loader"),
	}, nil
}

// Start launches the streaming workers. Each worker pops references from
// ingress until a pop times out or ctx is cancelled.
func (lp *LoaderPool) Start(ctx context.Context, ingress *Queue[core.Reference]) error {
	for i := 0; i < lp.size; i++ {
		worker := i
		lp.wg.Add(1)
		lp.running.Add(1)
		if err := lp.pool.Submit(func() { lp.work(ctx, worker, ingress) }); err != nil {
			lp.running.Add(-1)
			lp.wg.Done()
			return fmt.Errorf("starting loader %d: %w", worker, err)
		}
	}
	return nil
}

func (lp *LoaderPool) work(ctx context.Context, worker int, ingress *Queue[core.Reference]) {
	defer lp.wg.Done()
	defer lp.running.Add(-1)

	logger := lp.logger.With("worker", worker)
	for {
		ref, err := ingress.Pop(ctx, lp.idleTimeout)
		if err != nil {
			if errors.Is(err, ErrQueueTimeout) {
				logger.Debug("no work, exiting")
			}
			return
		}

		result := lp.load(ctx, ref)
		if ctx.Err() != nil {
			return
		}
		lp.egress.Push(result)
	}
}

// LoadBatch loads refs in parallel on the pool and returns once every
// result is on the egress queue, or ctx is cancelled.
func (lp *LoaderPool) LoadBatch(ctx context.Context, refs []core.Reference) error {
	var wg sync.WaitGroup
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		err := lp.pool.Submit(func() {
			defer wg.Done()
			lp.egress.Push(lp.load(ctx, ref))
		})
		if err != nil {
			wg.Done()
			lp.egress.Push(core.LoadResult{Reference: ref, Err: err})
		}
	}
	wg.Wait()
	return ctx.Err()
}

// load calls Imread, converting a panic into a load error.
func (lp *LoaderPool) load(ctx context.Context, ref core.Reference) (result core.LoadResult) {
	result.Reference = ref
	defer func() {
		if r := recover(); r != nil {
			result.Payload = nil
			result.Err = fmt.Errorf("imread panicked: %v", r)
		}
	}()

	payload, err := lp.featurizer.Imread(ctx, ref)
	switch {
	case err != nil:
		result.Err = err
	case payload == nil:
		result.Err = fmt.Errorf("%w: %s", ErrEmptyPayload, ref)
	default:
		result.Payload = payload
	}
	return result
}

// Running returns the number of live streaming workers.
func (lp *LoaderPool) Running() int {
	return int(lp.running.Load())
}

// Wait blocks until every streaming worker has exited.
func (lp *LoaderPool) Wait() {
	lp.wg.Wait()
}

// Release frees the underlying goroutine pool.
func (lp *LoaderPool) Release() {
	lp.pool.Release()
}
