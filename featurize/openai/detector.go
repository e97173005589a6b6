package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/imageio"
)

const (
	maxParseAttempts = 3
	jpegQuality      = 90
)

// ErrNoDetections indicates the model returned no choices.
var ErrNoDetections = errors.New("model returned no choices")

// Frame is the payload produced by Imread: a square JPEG and its size.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
}

// detection is an internal type used for JSON unmarshaling.
type detection struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Box        []int   `json:"box"`
}

type detections struct {
	Objects []detection `json:"objects"`
}

// ObjectDetector implements featurize.Featurizer using a vision model.
type ObjectDetector struct {
	client        llms.Model
	targetDim     int
	minConfidence float32
	fetcher       *imageio.Fetcher
	logger        *slog.Logger
	closed        atomic.Bool
}

var _ featurize.Featurizer = (*ObjectDetector)(nil)

// Option configures an ObjectDetector.
type Option func(*ObjectDetector)

// WithClient replaces the model client.
func WithClient(client llms.Model) Option {
	return func(d *ObjectDetector) {
		d.client = client
	}
}

// WithFetcher sets the fetcher used by Imread.
func WithFetcher(f *imageio.Fetcher) Option {
	return func(d *ObjectDetector) {
		d.fetcher = f
	}
}

// NewObjectDetector creates a detector talking to cfg.Host with cfg.Model.
func NewObjectDetector(cfg *featurize.Config, opts ...Option) (*ObjectDetector, error) {
	if cfg == nil {
		return nil, errors.New("object detector: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &ObjectDetector{
		targetDim:     cfg.TargetDim,
		minConfidence: cfg.MinConfidence,
		logger:        slog.Default().With("component", "openai-detector"),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		// Use "none" as token for local OpenAI-compatible services that don't require authentication
		client, err := openai.New(
			openai.WithBaseURL(cfg.Host),
			openai.WithToken("none"),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, err
		}
		d.client = client
	}
	if d.fetcher == nil {
		d.fetcher = imageio.NewFetcher(
			imageio.WithFetchTimeout(cfg.FetchTimeout),
			imageio.WithFetchRetries(cfg.FetchRetries),
			imageio.WithRegion(cfg.Region))
	}
	return d, nil
}

// Name implements featurize.Featurizer.
func (d *ObjectDetector) Name() string {
	return featurize.BackendObjects
}

// Imread loads the image, resizes it to the target square and encodes it.
func (d *ObjectDetector) Imread(ctx context.Context, ref core.Reference) (core.Payload, error) {
	if d.closed.Load() {
		return nil, featurize.ErrClosed
	}
	img, err := d.fetcher.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	square, err := imageio.Square(img, d.targetDim)
	if err != nil {
		return nil, err
	}
	data, err := imageio.EncodeJPEG(square, jpegQuality)
	if err != nil {
		return nil, err
	}
	return &Frame{JPEG: data, Width: d.targetDim, Height: d.targetDim}, nil
}

// Featurize asks the model for detections and appends them as object features,
// most confident first.
func (d *ObjectDetector) Featurize(ctx context.Context, artifact *core.Artifact, payload core.Payload) error {
	if d.closed.Load() {
		return featurize.ErrClosed
	}
	if artifact == nil {
		return featurize.ErrNilArtifact
	}
	frame, ok := payload.(*Frame)
	if !ok {
		return fmt.Errorf("%w: %T", featurize.ErrUnexpectedPayload, payload)
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(frame.Width, frame.Height))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.BinaryPart("image/jpeg", frame.JPEG)},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result detections
	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		response, err := d.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			d.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return err
		}
		if len(response.Choices) < 1 {
			return ErrNoDetections
		}

		text := repairJSON(stripFences(response.Choices[0].Content))
		if err := json.Unmarshal([]byte(text), &result); err != nil {
			lastErr = err
			d.logger.Warn("error parsing detector response",
				"attempt", attempt+1,
				"response", text,
				"err", err)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return fmt.Errorf("parse detector response: %w", lastErr)
	}

	kept := make([]detection, 0, len(result.Objects))
	for _, obj := range result.Objects {
		if obj.Confidence < d.minConfidence || len(obj.Box) != 4 {
			continue
		}
		obj.Label = strings.ToLower(strings.TrimSpace(obj.Label))
		if obj.Label == "" {
			continue
		}
		kept = append(kept, obj)
	}
	slices.SortStableFunc(kept, func(a, b detection) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	for _, obj := range kept {
		artifact.AddFeature(core.NewObjectFeature(obj.Label, obj.Confidence, frameBox(obj.Box, frame)))
	}

	d.logger.Debug("detected objects",
		"reference", artifact.Reference,
		"total", len(result.Objects),
		"kept", len(kept))
	return nil
}

// Close implements featurize.Featurizer.
func (d *ObjectDetector) Close() error {
	d.closed.Store(true)
	return nil
}

// frameBox converts [top, bottom, left, right] into a box clamped to the frame,
// swapping inverted edges.
func frameBox(b []int, frame *Frame) core.Box {
	top, bottom := min(b[0], b[1]), max(b[0], b[1])
	left, right := min(b[2], b[3]), max(b[2], b[3])
	return core.Box{
		Top:    min(max(top, 0), frame.Height),
		Bottom: min(max(bottom, 0), frame.Height),
		Left:   min(max(left, 0), frame.Width),
		Right:  min(max(right, 0), frame.Width),
	}
}
