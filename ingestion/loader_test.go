package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize/mock"
)

func drainResults(q *Queue[core.LoadResult]) []core.LoadResult {
	var out []core.LoadResult
	for q.Len() > 0 {
		r, err := q.Pop(context.Background(), time.Millisecond)
		if err != nil {
			break
		}
		out = append(out, r)
	}
	return out
}

func TestNewLoaderPool_RequiresFeaturizer(t *testing.T) {
	_, err := NewLoaderPool(nil, NewQueue[core.LoadResult](), 1, time.Second, nil)
	assert.ErrorIs(t, err, ErrFeaturizerRequired)
}

func TestLoaderPool_IdleTimeoutBounds(t *testing.T) {
	egress := NewQueue[core.LoadResult]()
	lp, err := NewLoaderPool(mock.NewMockFeaturizer(), egress, 3, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer lp.Release()

	start := time.Now()
	require.NoError(t, lp.Start(context.Background(), NewQueue[core.Reference]()))
	assert.Equal(t, 3, lp.Running())

	lp.Wait()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 0, lp.Running())
}

func TestLoaderPool_LoadsEveryReference(t *testing.T) {
	featurizer := mock.NewMockFeaturizer()
	ingress := NewQueue[core.Reference]()
	egress := NewQueue[core.LoadResult]()
	for i := 0; i < 20; i++ {
		ingress.Push(core.Reference(fmt.Sprintf("/img/%d.png", i)))
	}

	lp, err := NewLoaderPool(featurizer, egress, 4, 30*time.Millisecond, nil)
	require.NoError(t, err)
	defer lp.Release()

	require.NoError(t, lp.Start(context.Background(), ingress))
	lp.Wait()

	results := drainResults(egress)
	assert.Len(t, results, 20)
	assert.Equal(t, 20, featurizer.ImreadCount())
	for _, r := range results {
		assert.True(t, r.OK())
	}
}

func TestLoaderPool_CancellationBypassesTimeout(t *testing.T) {
	egress := NewQueue[core.LoadResult]()
	lp, err := NewLoaderPool(mock.NewMockFeaturizer(), egress, 2, time.Minute, nil)
	require.NoError(t, err)
	defer lp.Release()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, lp.Start(ctx, NewQueue[core.Reference]()))

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	cancel()
	lp.Wait()

	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoaderPool_RecoversPanics(t *testing.T) {
	featurizer := mock.NewMockFeaturizer()
	featurizer.ImreadFunc = func(ctx context.Context, ref core.Reference) (core.Payload, error) {
		if ref == "/img/bad.png" {
			panic("corrupt header")
		}
		return ref, nil
	}

	ingress := NewQueue[core.Reference]()
	egress := NewQueue[core.LoadResult]()
	ingress.Push("/img/bad.png")
	ingress.Push("/img/good.png")

	lp, err := NewLoaderPool(featurizer, egress, 1, 30*time.Millisecond, nil)
	require.NoError(t, err)
	defer lp.Release()

	require.NoError(t, lp.Start(context.Background(), ingress))
	lp.Wait()

	results := drainResults(egress)
	require.Len(t, results, 2)
	assert.Equal(t, core.Reference("/img/bad.png"), results[0].Reference)
	assert.ErrorContains(t, results[0].Err, "corrupt header")
	assert.Nil(t, results[0].Payload)
	assert.True(t, results[1].OK())
}

func TestLoaderPool_LoadBatch(t *testing.T) {
	errMissing := errors.New("no such file")
	featurizer := mock.NewMockFeaturizer()
	featurizer.ImreadFunc = func(ctx context.Context, ref core.Reference) (core.Payload, error) {
		if ref == "/img/missing.png" {
			return nil, errMissing
		}
		return ref, nil
	}

	egress := NewQueue[core.LoadResult]()
	lp, err := NewLoaderPool(featurizer, egress, 3, time.Second, nil)
	require.NoError(t, err)
	defer lp.Release()

	refs := []core.Reference{"/img/a.png", "/img/missing.png", "/img/b.png", "/img/c.png"}
	require.NoError(t, lp.LoadBatch(context.Background(), refs))

	results := drainResults(egress)
	require.Len(t, results, len(refs))
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			assert.ErrorIs(t, r.Err, errMissing)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestLoaderPool_EmptyPayloadIsLoadError(t *testing.T) {
	featurizer := mock.NewMockFeaturizer()
	featurizer.ImreadFunc = func(ctx context.Context, ref core.Reference) (core.Payload, error) {
		return nil, nil
	}

	egress := NewQueue[core.LoadResult]()
	lp, err := NewLoaderPool(featurizer, egress, 1, time.Second, nil)
	require.NoError(t, err)
	defer lp.Release()

	require.NoError(t, lp.LoadBatch(context.Background(), []core.Reference{"/img/empty.png"}))

	results := drainResults(egress)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
	assert.ErrorIs(t, results[0].Err, ErrEmptyPayload)
	assert.ErrorContains(t, results[0].Err, "/img/empty.png")
}
