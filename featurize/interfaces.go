package featurize

import (
	"context"

	"github.com/poiesic/imgfeat/core"
)

// Featurizer extracts features from images.
//
// Imread must be safe for concurrent use. Featurize is called by a single
// goroutine at a time and need not be reentrant.
type Featurizer interface {
	// Name returns the backend name recorded on produced artifacts.
	Name() string

	// Imread fetches and decodes the image named by ref into the
	// backend's payload format. Errors describe why this one image could
	// not be loaded; they must never panic the caller.
	Imread(ctx context.Context, ref core.Reference) (core.Payload, error)

	// Featurize computes features from payload and appends them to artifact.
	Featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) error

	// Close releases model resources. The featurizer must not be used afterwards.
	Close() error
}
