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


// Package storage provides the result sinks and artifact stores for imgfeat.
//
// The pipeline only depends on ArtifactSink: something that accepts one
// finalized artifact at a time and is idempotent on artifact ID. Richer
// stores implement ArtifactRepository, adding lookup, iteration and
// embedding similarity search.
//
// # Implementations
//
//   - WriterSink: JSON lines on any io.Writer (stdout by default)
//   - storage/badger: embedded BadgerDB store, on disk or in memory
//   - storage/redis: Redis-backed store
//   - TeeSink: fans one artifact out to several sinks
//
// Artifacts are persisted in a compact binary form built on mus-go; see
// MarshalArtifact.
//
// # Usage
//
//	repo, err := badger.NewArtifactRepository(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
package storage
