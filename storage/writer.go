package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/imgfeat/core"
)

// featureRecord is the JSON form of core.Feature.
type featureRecord struct {
	Kind       core.FeatureKind `json:"kind"`
	Label      string           `json:"label,omitempty"`
	Confidence float32          `json:"confidence,omitempty"`
	Box        *[4]int          `json:"box,omitempty"` // [top, bottom, left, right]
	Vector     []float32        `json:"vector,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Err        string           `json:"error,omitempty"`
}

// artifactRecord is the JSON form of core.Artifact.
type artifactRecord struct {
	Id        core.ID         `json:"id"`
	Reference core.Reference  `json:"reference"`
	Backend   string          `json:"backend"`
	Features  []featureRecord `json:"features"`
	Err       string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func newArtifactRecord(a *core.Artifact) artifactRecord {
	rec := artifactRecord{
		Id:        a.Id,
		Reference: a.Reference,
		Backend:   a.Backend,
		Features:  make([]featureRecord, 0, len(a.Features)),
		Err:       a.Err,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	for _, f := range a.Features {
		fr := featureRecord{
			Kind:       f.Kind,
			Label:      f.Label,
			Confidence: f.Confidence,
			Vector:     f.Vector,
			CreatedAt:  f.CreatedAt,
			Err:        f.Err,
		}
		if f.Box != nil {
			fr.Box = &[4]int{f.Box.Top, f.Box.Bottom, f.Box.Left, f.Box.Right}
		}
		rec.Features = append(rec.Features, fr)
	}
	return rec
}

// WriterSink writes each artifact as one JSON line.
// Writes are serialized so lines never interleave.
type WriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ ArtifactSink = (*WriterSink)(nil)

// NewWriterSink creates a sink writing JSON lines to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w)}
}

// PutArtifact implements ArtifactSink.
func (s *WriterSink) PutArtifact(ctx context.Context, artifact *core.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(newArtifactRecord(artifact)); err != nil {
		return fmt.Errorf("write artifact %d: %w", artifact.Id, err)
	}
	return nil
}

// TeeSink stores every artifact in each of its sinks, in order.
type TeeSink struct {
	sinks []ArtifactSink
}

var _ ArtifactSink = (*TeeSink)(nil)

// NewTeeSink fans artifacts out to sinks.
func NewTeeSink(sinks ...ArtifactSink) (*TeeSink, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	return &TeeSink{sinks: sinks}, nil
}

// PutArtifact implements ArtifactSink. It stops at the first failing sink.
// Since sinks are idempotent a retry simply rewrites the earlier ones.
func (t *TeeSink) PutArtifact(ctx context.Context, artifact *core.Artifact) error {
	for _, s := range t.sinks {
		if err := s.PutArtifact(ctx, artifact); err != nil {
			return err
		}
	}
	return nil
}
