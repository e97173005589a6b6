package imgfeat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/imgfeat/featurize"
)

func TestNewFeaturizer(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{featurize.BackendDense, "dense"},
		{featurize.BackendCrow, "crow"},
		{"  CROW ", "crow"},
		{featurize.BackendObjects, "objects"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			f, err := NewFeaturizer(featurize.NewConfig(featurize.WithBackend(tt.backend)))
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, tt.want, f.Name())
		})
	}
}

func TestNewFeaturizer_Defaults(t *testing.T) {
	f, err := NewFeaturizer(nil)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, featurize.BackendDense, f.Name())
}

func TestNewFeaturizer_UnknownBackend(t *testing.T) {
	_, err := NewFeaturizer(featurize.NewConfig(featurize.WithBackend("vgg19")))
	assert.ErrorIs(t, err, featurize.ErrUnknownBackend)
}

func TestNewFeaturizer_FacesNeedsCascade(t *testing.T) {
	_, err := NewFeaturizer(featurize.NewConfig(featurize.WithBackend(featurize.BackendFaces)))
	assert.Error(t, err)

	missing := filepath.Join(t.TempDir(), "facefinder")
	_, err = NewFeaturizer(featurize.NewConfig(
		featurize.WithBackend(featurize.BackendFaces),
		featurize.WithCascadePath(missing)))
	assert.ErrorContains(t, err, "read cascade")
}
