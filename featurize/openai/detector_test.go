package openai

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/imageio"
)

// scriptedModel returns canned responses in order, repeating the last one.
type scriptedModel struct {
	responses []string
	err       error
	calls     int
	messages  [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.messages = append(m.messages, messages)
	if m.err != nil {
		return nil, m.err
	}
	idx := min(m.calls-1, len(m.responses)-1)
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.responses[idx]}}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func newTestDetector(t *testing.T, model *scriptedModel) *ObjectDetector {
	t.Helper()
	cfg := featurize.NewConfig(
		featurize.WithBackend(featurize.BackendObjects),
		featurize.WithTargetDim(64),
		featurize.WithMinConfidence(0.3),
	)
	d, err := NewObjectDetector(cfg, WithClient(model))
	require.NoError(t, err)
	return d
}

func testFrame() *Frame {
	return &Frame{JPEG: []byte{0xff, 0xd8}, Width: 64, Height: 64}
}

func TestObjectDetector_Featurize(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"```json\n" + `{"objects": [
			{"label": "Dog", "confidence": 0.6, "box": [10, 40, 5, 30]},
			{"label": "person", "confidence": 0.95, "box": [0, 64, 20, 50]},
			{"label": "cup", "confidence": 0.1, "box": [1, 2, 3, 4]}
		]}` + "\n```",
	}}
	d := newTestDetector(t, model)

	artifact := core.NewArtifact("park.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, testFrame()))

	require.Len(t, artifact.Features, 2)
	assert.Equal(t, "person", artifact.Features[0].Label)
	assert.Equal(t, "dog", artifact.Features[1].Label)
	assert.Equal(t, core.FeatureKindObject, artifact.Features[1].Kind)
	assert.Equal(t, core.Box{Top: 10, Bottom: 40, Left: 5, Right: 30}, *artifact.Features[1].Box)

	require.Len(t, model.messages, 1)
	require.Len(t, model.messages[0], 2)
	_, isBinary := model.messages[0][1].Parts[0].(llms.BinaryContent)
	assert.True(t, isBinary, "image is sent as binary content")
}

func TestObjectDetector_RetriesMalformedJSON(t *testing.T) {
	model := &scriptedModel{responses: []string{
		`{"objects": [ oops`,
		`{objects": [{"label": "cat", "confidence": 0.9, "box": [0, 10, 0, 10],}]}`,
	}}
	d := newTestDetector(t, model)

	artifact := core.NewArtifact("cat.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, testFrame()))

	assert.Equal(t, 2, model.calls)
	require.Len(t, artifact.Features, 1)
	assert.Equal(t, "cat", artifact.Features[0].Label)
}

func TestObjectDetector_GivesUpAfterRetries(t *testing.T) {
	model := &scriptedModel{responses: []string{"not json"}}
	d := newTestDetector(t, model)

	artifact := core.NewArtifact("x.jpg", d.Name())
	err := d.Featurize(context.Background(), artifact, testFrame())
	require.Error(t, err)
	assert.Equal(t, maxParseAttempts, model.calls)
	assert.Empty(t, artifact.Features)
}

func TestObjectDetector_ModelError(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	d := newTestDetector(t, model)

	err := d.Featurize(context.Background(), core.NewArtifact("x.jpg", d.Name()), testFrame())
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 1, model.calls)
}

func TestObjectDetector_ClampsAndSkipsBadBoxes(t *testing.T) {
	model := &scriptedModel{responses: []string{`{"objects": [
		{"label": "bus", "confidence": 0.8, "box": [70, -5, 100, 10]},
		{"label": "sign", "confidence": 0.8, "box": [1, 2]},
		{"label": " ", "confidence": 0.8, "box": [1, 2, 3, 4]}
	]}`}}
	d := newTestDetector(t, model)

	artifact := core.NewArtifact("street.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, testFrame()))

	require.Len(t, artifact.Features, 1)
	assert.Equal(t, core.Box{Top: 0, Bottom: 64, Left: 10, Right: 64}, *artifact.Features[0].Box)
}

func TestObjectDetector_Imread(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, imageio.WritePNG(path, 200, 100, color.White))
	d := newTestDetector(t, &scriptedModel{})

	payload, err := d.Imread(context.Background(), core.Reference(path))
	require.NoError(t, err)
	frame, ok := payload.(*Frame)
	require.True(t, ok)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 64, frame.Height)
	assert.NotEmpty(t, frame.JPEG)
}

func TestObjectDetector_RejectsForeignPayload(t *testing.T) {
	d := newTestDetector(t, &scriptedModel{})
	err := d.Featurize(context.Background(), core.NewArtifact("x", "objects"), 42)
	assert.ErrorIs(t, err, featurize.ErrUnexpectedPayload)
}

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "valid", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "missing opening quote", in: `{"a": 1, b": 2}`, want: `{"a": 1, "b": 2}`},
		{name: "bare key", in: `{a: 1}`, want: `{"a": 1}`},
		{name: "trailing comma", in: `{"a": [1, 2,]}`, want: `{"a": [1, 2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, repairJSON(tt.in))
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}
