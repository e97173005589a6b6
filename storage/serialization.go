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
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/imgfeat/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(v), err
}

// MarshalArtifact serializes an Artifact to bytes.
func MarshalArtifact(artifact *core.Artifact) []byte {
	buf := make([]byte, artifactSize(artifact))
	w := writer{bs: buf}
	w.artifact(artifact)
	return buf[:w.n]
}

// UnmarshalArtifact deserializes an Artifact from bytes.
func UnmarshalArtifact(data []byte) (*core.Artifact, error) {
	r := reader{bs: data}
	artifact := r.artifact()
	if r.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return artifact, nil
}

// Timestamps are stored as Unix microseconds.

func artifactSize(a *core.Artifact) int {
	size := varint.Uint64.Size(uint64(a.Id)) +
		ord.String.Size(string(a.Reference)) +
		ord.String.Size(a.Backend) +
		ord.String.Size(a.Err) +
		varint.Int64.Size(a.CreatedAt.UnixMicro()) +
		varint.Int64.Size(a.UpdatedAt.UnixMicro()) +
		varint.Uint64.Size(uint64(len(a.Features)))
	for i := range a.Features {
		size += featureSize(&a.Features[i])
	}
	return size
}

func featureSize(f *core.Feature) int {
	size := ord.String.Size(string(f.Kind)) +
		ord.String.Size(f.Label) +
		raw.Float32.Size(f.Confidence) +
		ord.Bool.Size(f.Box != nil) +
		varint.Uint64.Size(uint64(len(f.Vector))) +
		varint.Int64.Size(f.CreatedAt.UnixMicro()) +
		ord.String.Size(f.Err)
	if f.Box != nil {
		size += varint.Int64.Size(int64(f.Box.Top)) +
			varint.Int64.Size(int64(f.Box.Bottom)) +
			varint.Int64.Size(int64(f.Box.Left)) +
			varint.Int64.Size(int64(f.Box.Right))
	}
	for _, v := range f.Vector {
		size += raw.Float32.Size(v)
	}
	return size
}

type writer struct {
	bs []byte
	n  int
}

func (w *writer) uint64(v uint64)   { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *writer) int64(v int64)     { w.n += varint.Int64.Marshal(v, w.bs[w.n:]) }
func (w *writer) string(v string)   { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *writer) bool(v bool)       { w.n += ord.Bool.Marshal(v, w.bs[w.n:]) }
func (w *writer) float32(v float32) { w.n += raw.Float32.Marshal(v, w.bs[w.n:]) }
func (w *writer) time(t time.Time)  { w.int64(t.UnixMicro()) }

func (w *writer) artifact(a *core.Artifact) {
	w.uint64(uint64(a.Id))
	w.string(string(a.Reference))
	w.string(a.Backend)
	w.string(a.Err)
	w.time(a.CreatedAt)
	w.time(a.UpdatedAt)
	w.uint64(uint64(len(a.Features)))
	for i := range a.Features {
		w.feature(&a.Features[i])
	}
}

func (w *writer) feature(f *core.Feature) {
	w.string(string(f.Kind))
	w.string(f.Label)
	w.float32(f.Confidence)
	w.bool(f.Box != nil)
	if f.Box != nil {
		w.int64(int64(f.Box.Top))
		w.int64(int64(f.Box.Bottom))
		w.int64(int64(f.Box.Left))
		w.int64(int64(f.Box.Right))
	}
	w.uint64(uint64(len(f.Vector)))
	for _, v := range f.Vector {
		w.float32(v)
	}
	w.time(f.CreatedAt)
	w.string(f.Err)
}

// reader decodes sequentially and remembers the first error.
// Once err is set every further read is a no-op returning the zero value.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) uint64() (v uint64) {
	if r.err == nil {
		var n int
		v, n, r.err = varint.Uint64.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) int64() (v int64) {
	if r.err == nil {
		var n int
		v, n, r.err = varint.Int64.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) string() (v string) {
	if r.err == nil {
		var n int
		v, n, r.err = ord.String.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) bool() (v bool) {
	if r.err == nil {
		var n int
		v, n, r.err = ord.Bool.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) float32() (v float32) {
	if r.err == nil {
		var n int
		v, n, r.err = raw.Float32.Unmarshal(r.bs[r.n:])
		r.n += n
	}
	return
}

func (r *reader) time() time.Time {
	micros := r.int64()
	if r.err != nil {
		return time.Time{}
	}
	return time.UnixMicro(micros)
}

// length reads a collection length and rejects values that cannot fit in
// the remaining bytes, each element needing at least minElem bytes.
func (r *reader) length(minElem int) int {
	l := r.uint64()
	if r.err == nil && l > uint64((len(r.bs)-r.n)/minElem) {
		r.err = ErrTruncatedData
		return 0
	}
	return int(l)
}

func (r *reader) artifact() *core.Artifact {
	a := &core.Artifact{}
	a.Id = core.ID(r.uint64())
	a.Reference = core.Reference(r.string())
	a.Backend = r.string()
	a.Err = r.string()
	a.CreatedAt = r.time()
	a.UpdatedAt = r.time()
	if count := r.length(1); count > 0 {
		a.Features = make([]core.Feature, count)
		for i := range a.Features {
			r.feature(&a.Features[i])
		}
	}
	return a
}

func (r *reader) feature(f *core.Feature) {
	f.Kind = core.FeatureKind(r.string())
	f.Label = r.string()
	f.Confidence = r.float32()
	if r.bool() {
		f.Box = &core.Box{
			Top:    int(r.int64()),
			Bottom: int(r.int64()),
			Left:   int(r.int64()),
			Right:  int(r.int64()),
		}
	}
	if count := r.length(4); count > 0 {
		f.Vector = make([]float32, count)
		for i := range f.Vector {
			f.Vector[i] = r.float32()
		}
	}
	f.CreatedAt = r.time()
	f.Err = r.string()
}
