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

import "errors"

// Domain validation errors
var (
	// ErrInvalidArtifact indicates an Artifact failed validation.
	ErrInvalidArtifact = errors.New("invalid artifact")

	// ErrInvalidFeature indicates a Feature failed validation.
	ErrInvalidFeature = errors.New("invalid feature")

	// ErrEmptyReference indicates an image reference is empty.
	ErrEmptyReference = errors.New("image reference cannot be empty")

	// ErrUnsupportedScheme indicates a reference uses a scheme no loader handles.
	ErrUnsupportedScheme = errors.New("unsupported reference scheme")

	// ErrInvalidFeatureKind indicates an unknown FeatureKind value.
	ErrInvalidFeatureKind = errors.New("invalid feature kind")

	// ErrMissingBox indicates a detection feature has no bounding box.
	ErrMissingBox = errors.New("detection feature requires a bounding box")

	// ErrEmptyVector indicates an embedding feature has no vector.
	ErrEmptyVector = errors.New("embedding feature requires a vector")

	// ErrInvalidBox indicates a bounding box has negative extent.
	ErrInvalidBox = errors.New("bounding box has negative extent")
)
