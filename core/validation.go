// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

// ValidateReference checks that a reference is non-empty and uses a
// scheme the image loader understands.
func ValidateReference(ref Reference) error {
	if strings.TrimSpace(string(ref)) == "" {
		return ErrEmptyReference
	}
	switch ref.Scheme() {
	case SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeS3:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, ref.Scheme())
	}
}

// ValidateArtifact validates an Artifact according to domain rules.
//
// Validation rules:
//   - Reference must be valid
//   - Every feature must be valid
//
// NOT validated:
//   - Features may be empty (failed or featureless images are still stored)
//   - Backend (set by the pipeline)
func ValidateArtifact(artifact *Artifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: artifact is nil", ErrInvalidArtifact)
	}

	if err := ValidateReference(artifact.Reference); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}

	for i := range artifact.Features {
		if err := ValidateFeature(&artifact.Features[i]); err != nil {
			return fmt.Errorf("%w: feature %d: %w", ErrInvalidArtifact, i, err)
		}
	}

	return nil
}

// ValidateFeature validates a Feature according to its kind.
func ValidateFeature(f *Feature) error {
	if f == nil {
		return fmt.Errorf("%w: feature is nil", ErrInvalidFeature)
	}

	switch f.Kind {
	case FeatureKindEmbedding:
		if len(f.Vector) == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidFeature, ErrEmptyVector)
		}
	case FeatureKindObject, FeatureKindFace:
		if f.Box == nil {
			return fmt.Errorf("%w: %w", ErrInvalidFeature, ErrMissingBox)
		}
		if f.Box.Width() < 0 || f.Box.Height() < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidFeature, ErrInvalidBox)
		}
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalidFeature, ErrInvalidFeatureKind, f.Kind)
	}

	return nil
}
