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


// Package featurize defines the model-backed capability that turns images
// into features.
//
// Every backend implements the same two-step contract:
//
//   - Imread loads a reference into the payload shape the backend wants.
//     It is called from many loader goroutines at once and must be safe
//     for concurrent use.
//   - Featurize computes features from a payload and appends them to an
//     artifact. The pipeline only ever calls it from one goroutine, so
//     backends may hold non-reentrant model state.
//
// # Implementation Packages
//
//   - featurize/local: dense and sum-pooled embedding extractors computed in-process
//   - featurize/face: cascade face detector
//   - featurize/openai: object detector backed by an OpenAI-compatible vision model
//   - featurize/mock: test doubles for unit testing without models
//
// Backends are selected at startup by name; see imgfeat.NewFeaturizer.
package featurize
