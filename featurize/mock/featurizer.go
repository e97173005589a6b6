package mock

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
)

// MockFeaturizer is a test double for featurize.Featurizer.
// It allows custom behavior injection via function fields.
type MockFeaturizer struct {
	// ImreadFunc is called by Imread if set.
	// If nil, the reference is returned as the payload.
	ImreadFunc func(ctx context.Context, ref core.Reference) (core.Payload, error)

	// FeaturizeFunc is called by Featurize if set.
	// If nil, a deterministic embedding is appended.
	FeaturizeFunc func(ctx context.Context, artifact *core.Artifact, payload core.Payload) error

	// Dim is the length of default embeddings. Zero means 16.
	Dim int

	imreadCalls    atomic.Int64
	featurizeCalls atomic.Int64
	inFlight       atomic.Int64
	maxInFlight    atomic.Int64
	closed         atomic.Bool

	mu         sync.Mutex
	featurized []core.Reference
}

var _ featurize.Featurizer = (*MockFeaturizer)(nil)

// NewMockFeaturizer creates a mock featurizer with default deterministic behavior.
func NewMockFeaturizer() *MockFeaturizer {
	return &MockFeaturizer{}
}

// Name implements featurize.Featurizer.
func (m *MockFeaturizer) Name() string {
	return "mock"
}

// Imread implements featurize.Featurizer.
func (m *MockFeaturizer) Imread(ctx context.Context, ref core.Reference) (core.Payload, error) {
	m.imreadCalls.Add(1)

	if m.ImreadFunc != nil {
		return m.ImreadFunc(ctx, ref)
	}
	return ref, nil
}

// Featurize implements featurize.Featurizer.
func (m *MockFeaturizer) Featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) error {
	m.featurizeCalls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.featurized = append(m.featurized, artifact.Reference)
	m.mu.Unlock()

	if m.FeaturizeFunc != nil {
		return m.FeaturizeFunc(ctx, artifact, payload)
	}

	dim := m.Dim
	if dim == 0 {
		dim = 16
	}
	artifact.AddFeature(core.NewEmbeddingFeature(DeterministicVector(string(artifact.Reference), dim)))
	return nil
}

// Close implements featurize.Featurizer.
func (m *MockFeaturizer) Close() error {
	m.closed.Store(true)
	return nil
}

// ImreadCount returns the number of Imread calls.
func (m *MockFeaturizer) ImreadCount() int {
	return int(m.imreadCalls.Load())
}

// FeaturizeCount returns the number of Featurize calls.
func (m *MockFeaturizer) FeaturizeCount() int {
	return int(m.featurizeCalls.Load())
}

// MaxConcurrentFeaturize returns the highest number of Featurize calls
// observed running at the same time.
func (m *MockFeaturizer) MaxConcurrentFeaturize() int {
	return int(m.maxInFlight.Load())
}

// Featurized returns the references passed to Featurize, in call order.
func (m *MockFeaturizer) Featurized() []core.Reference {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Reference, len(m.featurized))
	copy(out, m.featurized)
	return out
}

// Closed reports whether Close was called.
func (m *MockFeaturizer) Closed() bool {
	return m.closed.Load()
}

// Reset clears call counts and injected behavior.
func (m *MockFeaturizer) Reset() {
	m.imreadCalls.Store(0)
	m.featurizeCalls.Store(0)
	m.maxInFlight.Store(0)
	m.closed.Store(false)
	m.ImreadFunc = nil
	m.FeaturizeFunc = nil
	m.mu.Lock()
	m.featurized = nil
	m.mu.Unlock()
}

// DeterministicVector creates a unit-length vector from text.
// The same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return core.NormalizeVector(vector)
}
