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


package badger

import (
	"fmt"

	"github.com/poiesic/imgfeat/core"
)

const (
	artifactPrefix = "artrec"
)

// makeArtifactKey generates a key for an artifact by ID.
func makeArtifactKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", artifactPrefix, id))
}

// artifactKeyPrefix matches every artifact key.
func artifactKeyPrefix() []byte {
	return []byte(artifactPrefix + ":")
}
