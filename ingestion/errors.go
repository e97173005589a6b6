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


package ingestion

import "errors"

var (
	// ErrQueueTimeout is returned by Queue.Pop when nothing arrives in time.
	ErrQueueTimeout = errors.New("queue wait timed out")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid ingestion config")

	// ErrEmptyPayload is the load error for an Imread that returned neither
	// a payload nor an error.
	ErrEmptyPayload = errors.New("imread returned no payload")

	// ErrFeaturizerRequired is returned when a featurizer is not provided.
	ErrFeaturizerRequired = errors.New("featurizer required")

	// ErrSinkRequired is returned when an artifact sink is not provided.
	ErrSinkRequired = errors.New("artifact sink required")

	// ErrPipelineClosed is returned when a pipeline is run after it has finished.
	ErrPipelineClosed = errors.New("pipeline already ran")
)
