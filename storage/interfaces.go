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


package storage

import (
	"context"

	"github.com/poiesic/imgfeat/core"
)

// ArtifactSink receives finalized artifacts one at a time.
// Implementations must be idempotent on artifact ID: storing the same ID
// twice leaves a single record holding the latest artifact.
type ArtifactSink interface {
	// PutArtifact stores the artifact. The caller must not mutate it afterwards.
	PutArtifact(ctx context.Context, artifact *core.Artifact) error
}

// ArtifactRepository is a queryable artifact store.
type ArtifactRepository interface {
	ArtifactSink

	// GetArtifact retrieves a single artifact by ID.
	// Returns ErrNotFound if the artifact doesn't exist.
	GetArtifact(ctx context.Context, id core.ID) (*core.Artifact, error)

	// GetArtifacts retrieves multiple artifacts by their IDs.
	// Returns only the artifacts that exist (no error for missing artifacts).
	GetArtifacts(ctx context.Context, ids ...core.ID) ([]*core.Artifact, error)

	// DeleteArtifacts removes artifacts by their IDs.
	// Returns ErrNotFound if any artifact doesn't exist.
	DeleteArtifacts(ctx context.Context, ids ...core.ID) error

	// ForEachArtifact calls fn with batches of up to batchSize artifacts
	// until every artifact has been visited or fn returns an error.
	ForEachArtifact(ctx context.Context, batchSize int, fn func([]*core.Artifact) error) error

	// CountArtifacts returns the number of stored artifacts.
	CountArtifacts(ctx context.Context) (int, error)

	// FindSimilar finds artifacts produced by backend whose embedding is
	// similar to the given vector. An empty backend matches every backend.
	// Returns artifacts with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, backend string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
