package featurize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendDense, cfg.Backend)
	assert.Equal(t, 224, cfg.TargetDim)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Host)
	assert.Equal(t, float32(0.25), cfg.MinConfidence)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 1, cfg.FetchRetries)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendFaces),
			WithTargetDim(416),
			WithCascadePath("/models/facefinder"),
			WithMinConfidence(5),
			WithFetchTimeout(time.Second),
			WithRegion("eu-west-1"),
		)

		assert.Equal(t, BackendFaces, cfg.Backend)
		assert.Equal(t, 416, cfg.TargetDim)
		assert.Equal(t, "/models/facefinder", cfg.CascadePath)
		assert.Equal(t, float32(5), cfg.MinConfidence)
		assert.Equal(t, time.Second, cfg.FetchTimeout)
		assert.Equal(t, "eu-west-1", cfg.Region)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "already normalized", host: "http://localhost:11434/v1", want: "http://localhost:11434/v1"},
		{name: "missing suffix", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "trailing slash", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.host), WithBackend("  DENSE "))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.Host)
			assert.Equal(t, BackendDense, cfg.Backend)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ConfigOption
		wantErr string
	}{
		{name: "dense", opts: nil},
		{name: "crow", opts: []ConfigOption{WithBackend(BackendCrow)}},
		{name: "objects", opts: []ConfigOption{WithBackend(BackendObjects)}},
		{name: "faces", opts: []ConfigOption{WithBackend(BackendFaces), WithCascadePath("/tmp/cascade")}},
		{name: "unknown backend", opts: []ConfigOption{WithBackend("vgg19")}, wantErr: "unknown featurizer backend"},
		{name: "tiny target", opts: []ConfigOption{WithTargetDim(2)}, wantErr: "TargetDim"},
		{name: "negative confidence", opts: []ConfigOption{WithMinConfidence(-1)}, wantErr: "MinConfidence"},
		{name: "zero fetch timeout", opts: []ConfigOption{WithFetchTimeout(0)}, wantErr: "FetchTimeout"},
		{name: "zero fetch retries", opts: []ConfigOption{WithFetchRetries(0)}, wantErr: "FetchRetries"},
		{name: "objects without model", opts: []ConfigOption{WithBackend(BackendObjects), WithModel("")}, wantErr: "Model is required"},
		{name: "objects without host", opts: []ConfigOption{WithBackend(BackendObjects), WithHost("")}, wantErr: "Host is required"},
		{name: "faces without cascade", opts: []ConfigOption{WithBackend(BackendFaces)}, wantErr: "CascadePath is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateUnknownBackendIsSentinel(t *testing.T) {
	err := NewConfig(WithBackend("yolo9000")).Validate()
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
