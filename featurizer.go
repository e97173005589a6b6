package imgfeat

import (
	"github.com/poiesic/imgfeat/featurize"
	"github.com/poiesic/imgfeat/featurize/face"
	"github.com/poiesic/imgfeat/featurize/local"
	"github.com/poiesic/imgfeat/featurize/openai"
)

// NewFeaturizer builds the backend selected by cfg.Backend. A nil cfg
// selects the defaults. Unknown backends fail with featurize.ErrUnknownBackend.
func NewFeaturizer(cfg *featurize.Config) (featurize.Featurizer, error) {
	if cfg == nil {
		cfg = featurize.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case featurize.BackendDense:
		return local.NewDense(cfg)
	case featurize.BackendCrow:
		return local.NewCrow(cfg)
	case featurize.BackendFaces:
		return face.NewDetector(cfg)
	case featurize.BackendObjects:
		return openai.NewObjectDetector(cfg)
	}
	return nil, featurize.ErrUnknownBackend
}
