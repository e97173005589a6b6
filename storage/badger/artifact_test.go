package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/storage"
)

func newTestRepo(t *testing.T) *ArtifactRepository {
	t.Helper()
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func embedded(ref string, vector ...float32) *core.Artifact {
	a := core.NewArtifact(core.Reference(ref), "dense")
	a.AddFeature(core.NewEmbeddingFeature(core.NormalizeVector(vector)))
	return a
}

func TestArtifactBasics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := embedded("/img/a.jpg", 1, 0)
	require.NoError(t, repo.PutArtifact(ctx, a))

	got, err := repo.GetArtifact(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, a.Reference, got.Reference)
	assert.Equal(t, a.Features[0].Vector, got.Features[0].Vector)

	_, err = repo.GetArtifact(ctx, core.IDFromContent("/img/missing.jpg"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutArtifact_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := core.NewArtifact("/img/a.jpg", "dense")
	first.Fail(errors.New("transient"))
	require.NoError(t, repo.PutArtifact(ctx, first))

	second := embedded("/img/a.jpg", 0, 1)
	require.NoError(t, repo.PutArtifact(ctx, second))
	require.NoError(t, repo.PutArtifact(ctx, second))

	count, err := repo.CountArtifacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetArtifact(ctx, second.Id)
	require.NoError(t, err)
	assert.False(t, got.Failed())
	assert.Len(t, got.Features, 1)
}

func TestPutArtifact_BackendsCoexist(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	dense := embedded("/img/a.png", 1, 0)
	require.NoError(t, repo.PutArtifact(ctx, dense))

	faces := core.NewArtifact("/img/a.png", "faces")
	faces.AddFeature(core.NewFaceFeature(0.9, core.Box{Top: 1, Bottom: 5, Left: 1, Right: 5}, nil))
	require.NoError(t, repo.PutArtifact(ctx, faces))

	count, err := repo.CountArtifacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := repo.GetArtifact(ctx, dense.Id)
	require.NoError(t, err)
	assert.Equal(t, "dense", got.Backend)
	assert.Equal(t, dense.Embedding(), got.Embedding())

	got, err = repo.GetArtifact(ctx, faces.Id)
	require.NoError(t, err)
	assert.True(t, got.HasFace())
}

func TestPutArtifact_Invalid(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.PutArtifact(context.Background(), &core.Artifact{})
	assert.ErrorIs(t, err, core.ErrInvalidArtifact)
}

func TestGetArtifacts_Multiple(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, b := embedded("/a", 1), embedded("/b", 1)
	require.NoError(t, repo.PutArtifact(ctx, a))
	require.NoError(t, repo.PutArtifact(ctx, b))

	got, err := repo.GetArtifacts(ctx, a.Id, core.IDFromContent("/nope"), b.Id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.Id, got[0].Id)
	assert.Equal(t, b.Id, got[1].Id)
}

func TestDeleteArtifacts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := embedded("/a", 1)
	require.NoError(t, repo.PutArtifact(ctx, a))
	require.NoError(t, repo.DeleteArtifacts(ctx, a.Id))

	_, err := repo.GetArtifact(ctx, a.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repo.DeleteArtifacts(ctx, a.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestForEachArtifact_Batches(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.PutArtifact(ctx, embedded(fmt.Sprintf("/img/%d.jpg", i), 1)))
	}

	var sizes []int
	seen := map[core.ID]bool{}
	err := repo.ForEachArtifact(ctx, 3, func(batch []*core.Artifact) error {
		sizes = append(sizes, len(batch))
		for _, a := range batch {
			seen[a.Id] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, seen, 7)

	stop := errors.New("stop")
	calls := 0
	err = repo.ForEachArtifact(ctx, 2, func(batch []*core.Artifact) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	err = repo.ForEachArtifact(ctx, 0, func([]*core.Artifact) error { return nil })
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestFindSimilar(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	near := embedded("/near", 1, 0.1)
	mid := embedded("/mid", 1, 1)
	far := embedded("/far", 0, 1)
	noEmbedding := core.NewArtifact("/objects-only", "objects")
	otherBackend := core.NewArtifact("/crow", "crow")
	otherBackend.AddFeature(core.NewEmbeddingFeature(core.NormalizeVector([]float32{1, 0})))
	for _, a := range []*core.Artifact{near, mid, far, noEmbedding, otherBackend} {
		require.NoError(t, repo.PutArtifact(ctx, a))
	}

	query := core.NormalizeVector([]float32{1, 0})

	results, err := repo.FindSimilar(ctx, "dense", query, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.Id, results[0].Artifact.Id)
	assert.Equal(t, mid.Id, results[1].Artifact.Id)
	assert.Greater(t, results[0].Score, results[1].Score)

	results, err = repo.FindSimilar(ctx, "dense", query, -1, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, near.Id, results[0].Artifact.Id)

	results, err = repo.FindSimilar(ctx, "", query, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, otherBackend.Id, results[0].Artifact.Id)

	_, err = repo.FindSimilar(ctx, "dense", nil, 0, 1)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestRepository_Closed(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, repo.Close())
	assert.ErrorIs(t, repo.PutArtifact(context.Background(), embedded("/a", 1)), storage.ErrStorageClosed)
	_, err = repo.CountArtifacts(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestNewArtifactRepository_ClosedBackend(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = NewArtifactRepository(backend)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
