package featurize

import "errors"

var (
	// ErrUnknownBackend indicates a backend name no featurizer is registered for.
	ErrUnknownBackend = errors.New("unknown featurizer backend")

	// ErrUnexpectedPayload indicates Featurize received a payload produced by another backend.
	ErrUnexpectedPayload = errors.New("unexpected payload type")

	// ErrClosed indicates the featurizer was used after Close.
	ErrClosed = errors.New("featurizer is closed")

	// ErrNilArtifact indicates Featurize was called without an artifact.
	ErrNilArtifact = errors.New("artifact is nil")
)
