package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Artifact IDs are derived from the image reference by content hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Reference identifies one image: a filesystem path or a URL.
// References are opaque to the pipeline and never deduplicated.
type Reference string

// Reference schemes understood by the image loader.
const (
	SchemeFile  = "file"
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeS3    = "s3"
)

// Scheme returns the scheme of the reference. Plain paths and file:// URLs
// are reported as SchemeFile.
func (r Reference) Scheme() string {
	s := string(r)
	idx := strings.Index(s, "://")
	if idx <= 0 {
		return SchemeFile
	}
	return strings.ToLower(s[:idx])
}

// IsRemote reports whether the reference must be fetched over the network.
func (r Reference) IsRemote() bool {
	return r.Scheme() != SchemeFile
}

// Path returns the part after the scheme separator, or the reference
// itself for plain paths.
func (r Reference) Path() string {
	s := string(r)
	if idx := strings.Index(s, "://"); idx > 0 {
		return s[idx+3:]
	}
	return s
}

func (r Reference) String() string {
	return string(r)
}

// Validate is shorthand for ValidateReference(r).
func (r Reference) Validate() error {
	return ValidateReference(r)
}

// Payload is a decoded image in whatever form a featurizer backend expects.
type Payload any

// LoadResult pairs a reference with either a decoded payload or the error
// that prevented loading it. Exactly one of Payload and Err is set.
type LoadResult struct {
	Reference Reference
	Payload   Payload
	Err       error
}

// OK reports whether the load succeeded.
func (lr LoadResult) OK() bool {
	return lr.Err == nil
}

// FeatureKind identifies the shape of a Feature.
type FeatureKind string

const (
	// FeatureKindEmbedding is a dense numeric vector describing the whole image.
	FeatureKindEmbedding FeatureKind = "embedding"
	// FeatureKindObject is a detected object with a class label and box.
	FeatureKindObject FeatureKind = "object"
	// FeatureKindFace is a detected face with a box.
	FeatureKindFace FeatureKind = "face"
)

// Box is a rectangle in pixel coordinates of the decoded image.
type Box struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int { return b.Right - b.Left }

// Height returns the vertical extent of the box.
func (b Box) Height() int { return b.Bottom - b.Top }

// Feature is one record extracted from an image by a featurizer.
// Which fields are populated depends on Kind.
type Feature struct {
	Kind       FeatureKind
	Label      string    // Object class name (object features)
	Confidence float32   // Detector confidence (object and face features)
	Box        *Box      // Location (object and face features)
	Vector     []float32 // Embedding or face descriptor
	CreatedAt  time.Time
	Err        string // Optional per-feature error
}

// NewEmbeddingFeature creates an embedding feature stamped with the current time.
func NewEmbeddingFeature(vector []float32) Feature {
	return Feature{
		Kind:      FeatureKindEmbedding,
		Vector:    vector,
		CreatedAt: time.Now(),
	}
}

// NewObjectFeature creates an object detection feature.
func NewObjectFeature(label string, confidence float32, box Box) Feature {
	return Feature{
		Kind:       FeatureKindObject,
		Label:      label,
		Confidence: confidence,
		Box:        &box,
		CreatedAt:  time.Now(),
	}
}

// NewFaceFeature creates a face detection feature. The descriptor may be nil.
func NewFaceFeature(confidence float32, box Box, descriptor []float32) Feature {
	return Feature{
		Kind:       FeatureKindFace,
		Confidence: confidence,
		Box:        &box,
		Vector:     descriptor,
		CreatedAt:  time.Now(),
	}
}

// Artifact accumulates everything extracted from one image.
// Features are append-only; once handed to a sink the artifact is no
// longer mutated by the pipeline.
type Artifact struct {
	Id        ID
	Reference Reference
	Backend   string    // Name of the featurizer that produced the features
	Features  []Feature // Extracted features, in extraction order
	Err       string    // Terminal error, empty on success
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ArtifactID identifies the artifact a backend produces for ref. Each
// backend gets its own ID, so results from different backends for the
// same image are stored side by side.
func ArtifactID(ref Reference, backend string) ID {
	return IDFromContent(backend + "|" + string(ref))
}

// NewArtifact creates an empty artifact identified by reference and backend.
func NewArtifact(ref Reference, backend string) *Artifact {
	now := time.Now()
	return &Artifact{
		Id:        ArtifactID(ref, backend),
		Reference: ref,
		Backend:   backend,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddFeature appends a feature. Existing features are never modified.
func (a *Artifact) AddFeature(f Feature) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	a.Features = append(a.Features, f)
	a.UpdatedAt = time.Now()
}

// Fail records a terminal error on the artifact.
func (a *Artifact) Fail(err error) {
	if err == nil {
		return
	}
	a.Err = err.Error()
	a.UpdatedAt = time.Now()
}

// Failed reports whether a terminal error was recorded.
func (a *Artifact) Failed() bool {
	return a.Err != ""
}

// FeaturesOfKind returns the features of the given kind in extraction order.
func (a *Artifact) FeaturesOfKind(kind FeatureKind) []Feature {
	var out []Feature
	for _, f := range a.Features {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Embedding returns the first embedding vector, or nil if there is none.
func (a *Artifact) Embedding() []float32 {
	for _, f := range a.Features {
		if f.Kind == FeatureKindEmbedding && len(f.Vector) > 0 {
			return f.Vector
		}
	}
	return nil
}

// HasFace reports whether at least one face was detected.
func (a *Artifact) HasFace() bool {
	for _, f := range a.Features {
		if f.Kind == FeatureKindFace {
			return true
		}
	}
	return false
}

// SimilarityMatch represents an artifact match from vector similarity search.
type SimilarityMatch struct {
	ArtifactId ID
	Score      float32
}

// SearchResult represents a search result with the full artifact and relevance score.
type SearchResult struct {
	Artifact *Artifact
	Score    float32
}
