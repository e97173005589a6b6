package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Stats summarizes a single pipeline run.
type Stats struct {
	RunID           uuid.UUID
	Read            int // references taken from the input
	Loaded          int // references decoded into payloads
	LoadFailed      int
	Featurized      int // payloads featurized without error
	FeaturizeFailed int
	Stored          int // artifacts accepted by the sink
	StoreFailed     int
	Elapsed         time.Duration
}

// Processed returns the number of images that reached the featurizer.
func (s *Stats) Processed() int {
	return s.Featurized + s.FeaturizeFailed
}
