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
	"errors"
	"log/slog"
	"time"

	"github.com/kbukum/gokit/resilience"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/storage"
)

const maxSinkBackoff = 10 * time.Second

// storeRetryable reports whether a failed PutArtifact may succeed on a
// later attempt. Rejected artifacts, closed storage and undecodable
// records fail the same way every time.
func storeRetryable(err error) bool {
	switch {
	case errors.Is(err, core.ErrInvalidArtifact),
		errors.Is(err, storage.ErrStorageClosed),
		errors.Is(err, storage.ErrSerializationFailed):
		return false
	}
	return resilience.DefaultRetryIf(err)
}

// sinkRetryConfig is the backoff policy for artifact writes: SinkRetries
// attempts, starting at SinkRetryDelay and doubling, without jitter.
func sinkRetryConfig(cfg *Config, logger *slog.Logger) resilience.RetryConfig {
	delay := cfg.SinkRetryDelay
	if delay <= 0 {
		// resilience replaces a zero backoff with its own default
		delay = time.Nanosecond
	}
	return resilience.RetryConfig{
		MaxAttempts:    cfg.SinkRetries,
		InitialBackoff: delay,
		MaxBackoff:     max(delay, maxSinkBackoff),
		BackoffFactor:  2,
		RetryIf:        storeRetryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			logger.Debug("store failed, retrying", "attempt", attempt, "backoff", backoff, "err", err)
		},
	}
}
