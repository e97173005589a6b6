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


package search

import "errors"

var (
	// ErrRepositoryRequired is returned when an artifact repository is not provided.
	ErrRepositoryRequired = errors.New("artifact repository required")

	// ErrFeaturizerRequired is returned when a featurizer is not provided.
	ErrFeaturizerRequired = errors.New("featurizer required")

	// ErrNoEmbedding is returned when the query image yields no embedding.
	ErrNoEmbedding = errors.New("query image produced no embedding")

	// ErrInvalidLimit is returned when a non-positive result limit is requested.
	ErrInvalidLimit = errors.New("limit must be greater than 0")
)
