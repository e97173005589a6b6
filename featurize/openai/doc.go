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


// Package openai implements an object-detecting featurizer backed by a
// vision model served through an OpenAI-compatible chat API.
//
// Imread resizes each image to a square frame and encodes it as JPEG.
// Featurize sends the frame to the model with a system prompt demanding a
// strict JSON list of detections, repairs the usual formatting slips, and
// appends one object feature per detection above the confidence threshold.
//
// Works with local servers such as Ollama or vLLM as well as hosted APIs:
//
//	cfg := featurize.NewConfig(
//	    featurize.WithBackend(featurize.BackendObjects),
//	    featurize.WithHost("http://localhost:11434/v1"),
//	    featurize.WithModel("llava:7b"),
//	)
//	detector, err := openai.NewObjectDetector(cfg)
package openai
