package ingestion

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config controls pipeline concurrency and pacing.
type Config struct {
	// IOThreads is the number of concurrent loader workers.
	IOThreads int `mapstructure:"io_threads" validate:"gte=1"`

	// Timeout is how long a worker or the orchestrator waits for new work
	// before treating the stream as exhausted.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// ChunkSize is the number of references loaded together in batch mode.
	ChunkSize int `mapstructure:"chunk_size" validate:"gte=1"`

	// PrintInterval is the number of processed images between progress lines.
	PrintInterval int `mapstructure:"print_interval" validate:"gte=1"`

	// SinkRetries is the number of attempts made to store each artifact.
	SinkRetries int `mapstructure:"sink_retries" validate:"gte=1"`

	// SinkRetryDelay is the base delay between store attempts.
	SinkRetryDelay time.Duration `mapstructure:"sink_retry_delay" validate:"gte=0"`
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		IOThreads:      3,
		Timeout:        10 * time.Second,
		ChunkSize:      10000,
		PrintInterval:  100,
		SinkRetries:    3,
		SinkRetryDelay: 100 * time.Millisecond,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
