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


// Package search finds stored images that resemble a query.
//
// The Searcher supports two kinds of lookup:
//   - Visual similarity: the query image is featurized with an embedding
//     backend and compared against stored embeddings by dot product
//   - Label search: stored object labels are matched against query words
//     with stop-word filtering
//
// Results are ranked by score, highest first.
package search
