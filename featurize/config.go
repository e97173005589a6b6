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


package featurize

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Backend names.
const (
	// BackendDense produces one dense embedding per image.
	BackendDense = "dense"
	// BackendCrow produces one sum-pooled embedding per image.
	BackendCrow = "crow"
	// BackendObjects produces one object feature per detection.
	BackendObjects = "objects"
	// BackendFaces produces one face feature per detection.
	BackendFaces = "faces"
)

// Backends lists every known backend name.
var Backends = []string{BackendDense, BackendCrow, BackendObjects, BackendFaces}

// Config holds configuration for featurizer backends.
type Config struct {
	// Backend selects the featurizer implementation.
	// Default: "dense"
	Backend string `mapstructure:"backend"`

	// TargetDim is the side length images are resized to before featurizing.
	// Default: 224
	TargetDim int `mapstructure:"target_dim"`

	// Host is the base URL of the OpenAI-compatible vision service (objects backend).
	// Example: "http://localhost:11434/v1"
	Host string `mapstructure:"host"`

	// Model is the vision model identifier (objects backend).
	// Example: "llava:7b", "gpt-4o-mini"
	Model string `mapstructure:"model"`

	// CascadePath is the path to a pigo face cascade file (faces backend).
	CascadePath string `mapstructure:"cascade_path"`

	// MinConfidence drops detections scoring below this value.
	// Default: 0.25
	MinConfidence float32 `mapstructure:"min_confidence"`

	// FetchTimeout bounds a single remote image fetch.
	// Default: 30s
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// FetchRetries is the number of attempts per http(s) fetch. Timeouts,
	// connection errors, 429 and 5xx responses are retried.
	// Default: 1 (no retry)
	FetchRetries int `mapstructure:"fetch_retries"`

	// Region is the AWS region for s3:// references. Empty uses the SDK default chain.
	Region string `mapstructure:"region"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend selects the backend by name.
func WithBackend(name string) ConfigOption {
	return func(c *Config) {
		c.Backend = name
	}
}

// WithTargetDim sets the resize target.
func WithTargetDim(dim int) ConfigOption {
	return func(c *Config) {
		c.TargetDim = dim
	}
}

// WithHost sets the vision service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the vision model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithCascadePath sets the face cascade file.
func WithCascadePath(path string) ConfigOption {
	return func(c *Config) {
		c.CascadePath = path
	}
}

// WithMinConfidence sets the detection threshold.
func WithMinConfidence(min float32) ConfigOption {
	return func(c *Config) {
		c.MinConfidence = min
	}
}

// WithFetchTimeout sets the remote fetch timeout.
func WithFetchTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.FetchTimeout = timeout
	}
}

// WithFetchRetries sets the number of attempts per http(s) fetch.
func WithFetchRetries(attempts int) ConfigOption {
	return func(c *Config) {
		c.FetchRetries = attempts
	}
}

// WithRegion sets the AWS region for s3:// references.
func WithRegion(region string) ConfigOption {
	return func(c *Config) {
		c.Region = region
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:       BackendDense,
		TargetDim:     224,
		Host:          "http://localhost:11434/v1",
		Model:         "llava:7b",
		MinConfidence: 0.25,
		FetchTimeout:  30 * time.Second,
		FetchRetries:  1,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendObjects),
//	    WithHost("http://localhost:11434/v1"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Backend names are lowercased and the host gets the /v1 suffix
// OpenAI-compatible APIs expect.
func (c *Config) Normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid for the selected backend.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownBackend, c.Backend, strings.Join(Backends, ", "))
	}
	if c.TargetDim < 8 {
		return errors.New("featurize config: TargetDim must be at least 8")
	}
	if c.MinConfidence < 0 {
		return errors.New("featurize config: MinConfidence cannot be negative")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("featurize config: FetchTimeout must be positive")
	}
	if c.FetchRetries < 1 {
		return errors.New("featurize config: FetchRetries must be at least 1")
	}

	switch c.Backend {
	case BackendObjects:
		if c.Host == "" {
			return errors.New("featurize config: Host is required for the objects backend")
		}
		if c.Model == "" {
			return errors.New("featurize config: Model is required for the objects backend")
		}
	case BackendFaces:
		if c.CascadePath == "" {
			return errors.New("featurize config: CascadePath is required for the faces backend")
		}
	}
	return nil
}
