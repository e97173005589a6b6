package face

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/imgfeat/core"
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/imageio"
)

type fakeClassifier struct {
	detections []pigo.Detection
	params     []pigo.CascadeParams
}

func (f *fakeClassifier) RunCascade(cp pigo.CascadeParams, angle float64) []pigo.Detection {
	f.params = append(f.params, cp)
	return f.detections
}

func (f *fakeClassifier) ClusterDetections(dets []pigo.Detection, iou float64) []pigo.Detection {
	return dets
}

func newTestDetector(t *testing.T, fc *fakeClassifier, minConfidence float32) *Detector {
	t.Helper()
	cfg := featurize.NewConfig(featurize.WithBackend(featurize.BackendFaces), featurize.WithMinConfidence(minConfidence))
	d, err := NewDetectorFromCascade(nil, cfg, withClassifier(fc))
	require.NoError(t, err)
	return d
}

func grayOf(rows, cols int, value uint8) *Gray {
	px := make([]uint8, rows*cols)
	for i := range px {
		px[i] = value
	}
	return &Gray{Pixels: px, Rows: rows, Cols: cols}
}

func TestDetector_Featurize(t *testing.T) {
	fc := &fakeClassifier{detections: []pigo.Detection{
		{Row: 50, Col: 40, Scale: 20, Q: 9.5},
		{Row: 10, Col: 10, Scale: 8, Q: 1.0},
	}}
	d := newTestDetector(t, fc, 5)

	artifact := core.NewArtifact("group.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, grayOf(100, 80, 128)))

	require.Len(t, artifact.Features, 1, "low confidence detections are dropped")
	f := artifact.Features[0]
	assert.Equal(t, core.FeatureKindFace, f.Kind)
	assert.Equal(t, float32(9.5), f.Confidence)
	assert.Equal(t, core.Box{Top: 40, Bottom: 60, Left: 30, Right: 50}, *f.Box)
	assert.Len(t, f.Vector, DescriptorSide*DescriptorSide)
	assert.True(t, artifact.HasFace())

	require.Len(t, fc.params, 1)
	assert.Equal(t, 100, fc.params[0].Rows)
	assert.Equal(t, 80, fc.params[0].Cols)
	assert.Equal(t, 80, fc.params[0].Dim)
}

func TestDetector_ClampsBoxes(t *testing.T) {
	fc := &fakeClassifier{detections: []pigo.Detection{{Row: 2, Col: 78, Scale: 20, Q: 10}}}
	d := newTestDetector(t, fc, 0)

	artifact := core.NewArtifact("edge.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, grayOf(50, 80, 10)))

	require.Len(t, artifact.Features, 1)
	assert.Equal(t, core.Box{Top: 0, Bottom: 12, Left: 68, Right: 80}, *artifact.Features[0].Box)
}

func TestDetector_NoFaces(t *testing.T) {
	d := newTestDetector(t, &fakeClassifier{}, 0)

	artifact := core.NewArtifact("landscape.jpg", d.Name())
	require.NoError(t, d.Featurize(context.Background(), artifact, grayOf(10, 10, 0)))
	assert.False(t, artifact.HasFace())
}

func TestDetector_RejectsForeignPayload(t *testing.T) {
	d := newTestDetector(t, &fakeClassifier{}, 0)

	err := d.Featurize(context.Background(), core.NewArtifact("a", "faces"), "not gray")
	assert.ErrorIs(t, err, featurize.ErrUnexpectedPayload)
}

func TestDetector_Imread(t *testing.T) {
	path := filepath.Join(t.TempDir(), "white.png")
	require.NoError(t, imageio.WritePNG(path, 12, 7, color.White))
	d := newTestDetector(t, &fakeClassifier{}, 0)

	payload, err := d.Imread(context.Background(), core.Reference(path))
	require.NoError(t, err)
	gray, ok := payload.(*Gray)
	require.True(t, ok)
	assert.Equal(t, 7, gray.Rows)
	assert.Equal(t, 12, gray.Cols)
	assert.Len(t, gray.Pixels, 84)
}

func TestNewDetector_MissingCascade(t *testing.T) {
	cfg := featurize.NewConfig(
		featurize.WithBackend(featurize.BackendFaces),
		featurize.WithCascadePath(filepath.Join(t.TempDir(), "facefinder")),
	)
	_, err := NewDetector(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read cascade")
}

func TestDescriptor_UniformChip(t *testing.T) {
	vec := descriptor(grayOf(16, 16, 200), core.Box{Top: 0, Bottom: 16, Left: 0, Right: 16})
	for _, v := range vec {
		assert.Equal(t, float32(0), v)
	}
}
