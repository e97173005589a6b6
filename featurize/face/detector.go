// Package face implements a face-detecting featurizer on top of the pigo
// pixel-intensity-comparison cascade.
package face

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	pigo "github.com/esimov/pigo/core"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/imageio"
)

const (
	defaultMinSize     = 20
	defaultMaxSize     = 1000
	defaultShiftFactor = 0.1
	defaultScaleFactor = 1.1
	defaultIoU         = 0.2

	// DescriptorSide is the side of the grayscale chip sampled for each face.
	DescriptorSide = 8
)

// classifier is the subset of *pigo.Pigo used for detection.
type classifier interface {
	RunCascade(cp pigo.CascadeParams, angle float64) []pigo.Detection
	ClusterDetections(detections []pigo.Detection, iouThreshold float64) []pigo.Detection
}

// Gray is the payload produced by Imread: a row-major 8-bit luma buffer.
type Gray struct {
	Pixels []uint8
	Rows   int
	Cols   int
}

// Detector appends one face feature per detected face.
// Featurize is not safe for concurrent use; Imread is.
type Detector struct {
	classifier    classifier
	minConfidence float32
	minSize       int
	maxSize       int
	fetcher       *imageio.Fetcher
	logger        *slog.Logger
	closed        atomic.Bool
}

var _ featurize.Featurizer = (*Detector)(nil)

// Option configures a Detector.
type Option func(*Detector)

// WithFetcher sets the fetcher used by Imread.
func WithFetcher(f *imageio.Fetcher) Option {
	return func(d *Detector) {
		d.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithFaceSize bounds the size in pixels of faces the cascade looks for.
func WithFaceSize(min, max int) Option {
	return func(d *Detector) {
		d.minSize = min
		d.maxSize = max
	}
}

func withClassifier(c classifier) Option {
	return func(d *Detector) {
		d.classifier = c
	}
}

// NewDetector loads the cascade named by cfg.CascadePath.
func NewDetector(cfg *featurize.Config, opts ...Option) (*Detector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("face detector: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return NewDetectorFromCascade(data, cfg, opts...)
}

// NewDetectorFromCascade builds a detector from an in-memory cascade.
func NewDetectorFromCascade(cascade []byte, cfg *featurize.Config, opts ...Option) (*Detector, error) {
	d := newDetector(cfg, opts...)
	if d.classifier == nil {
		c, err := pigo.NewPigo().Unpack(cascade)
		if err != nil {
			return nil, fmt.Errorf("unpack cascade: %w", err)
		}
		d.classifier = c
	}
	return d, nil
}

func newDetector(cfg *featurize.Config, opts ...Option) *Detector {
	if cfg == nil {
		cfg = featurize.DefaultConfig()
	}
	d := &Detector{
		minConfidence: cfg.MinConfidence,
		minSize:       defaultMinSize,
		maxSize:       defaultMaxSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fetcher == nil {
		d.fetcher = imageio.NewFetcher(
			imageio.WithFetchTimeout(cfg.FetchTimeout),
			imageio.WithFetchRetries(cfg.FetchRetries),
			imageio.WithRegion(cfg.Region))
	}
	d.logger = d.logger.With("featurizer", featurize.BackendFaces)
	return d
}

// Name implements featurize.Featurizer.
func (d *Detector) Name() string {
	return featurize.BackendFaces
}

// Imread loads the image as grayscale at its native resolution.
func (d *Detector) Imread(ctx context.Context, ref core.Reference) (core.Payload, error) {
	if d.closed.Load() {
		return nil, featurize.ErrClosed
	}
	img, err := d.fetcher.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Gray{
		Pixels: pigo.RgbToGrayscale(img),
		Rows:   b.Dy(),
		Cols:   b.Dx(),
	}, nil
}

// Featurize runs the cascade and appends a face feature per clustered detection.
func (d *Detector) Featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) error {
	if d.closed.Load() {
		return featurize.ErrClosed
	}
	if artifact == nil {
		return featurize.ErrNilArtifact
	}
	gray, ok := payload.(*Gray)
	if !ok {
		return fmt.Errorf("%w: %T", featurize.ErrUnexpectedPayload, payload)
	}

	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     d.maxSize,
		ShiftFactor: defaultShiftFactor,
		ScaleFactor: defaultScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pixels,
			Rows:   gray.Rows,
			Cols:   gray.Cols,
			Dim:    gray.Cols,
		},
	}
	dets := d.classifier.ClusterDetections(d.classifier.RunCascade(params, 0.0), defaultIoU)

	found := 0
	for _, det := range dets {
		if det.Q < d.minConfidence {
			continue
		}
		box := detectionBox(det, gray.Rows, gray.Cols)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		artifact.AddFeature(core.NewFaceFeature(det.Q, box, descriptor(gray, box)))
		found++
	}

	d.logger.Debug("featurized", "reference", artifact.Reference, "faces", found, "candidates", len(dets))
	return nil
}

// Close implements featurize.Featurizer.
func (d *Detector) Close() error {
	d.closed.Store(true)
	return nil
}

// detectionBox converts a centre/scale detection into a box clamped to the image.
func detectionBox(det pigo.Detection, rows, cols int) core.Box {
	half := det.Scale / 2
	return core.Box{
		Top:    clamp(det.Row-half, 0, rows),
		Bottom: clamp(det.Row+half, 0, rows),
		Left:   clamp(det.Col-half, 0, cols),
		Right:  clamp(det.Col+half, 0, cols),
	}
}

// descriptor samples the face chip onto a DescriptorSide grid of mean
// intensities, centred and scaled to unit length.
func descriptor(gray *Gray, box core.Box) []float32 {
	out := make([]float32, DescriptorSide*DescriptorSide)
	var mean float32
	for gy := 0; gy < DescriptorSide; gy++ {
		y0 := box.Top + gy*box.Height()/DescriptorSide
		y1 := max(box.Top+(gy+1)*box.Height()/DescriptorSide, y0+1)
		for gx := 0; gx < DescriptorSide; gx++ {
			x0 := box.Left + gx*box.Width()/DescriptorSide
			x1 := max(box.Left+(gx+1)*box.Width()/DescriptorSide, x0+1)
			var sum, n float32
			for y := y0; y < y1 && y < gray.Rows; y++ {
				for x := x0; x < x1 && x < gray.Cols; x++ {
					sum += float32(gray.Pixels[y*gray.Cols+x])
					n++
				}
			}
			if n > 0 {
				out[gy*DescriptorSide+gx] = sum / n
			}
			mean += out[gy*DescriptorSide+gx]
		}
	}
	mean /= float32(len(out))
	for i := range out {
		out[i] -= mean
	}
	return core.NormalizeVector(out)
}

func clamp(v, lo, hi int) int {
	return int(math.Max(float64(lo), math.Min(float64(hi), float64(v))))
}
