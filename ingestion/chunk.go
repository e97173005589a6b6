package ingestion

import (
	"iter"
	"slices"
)

// Chunk groups seq into slices of size elements. The final chunk holds
// whatever is left and may be shorter; an empty seq yields nothing.
// A size below 1 is treated as 1. Each yielded slice is freshly allocated.
func Chunk[T any](seq iter.Seq[T], size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}
	return func(yield func([]T) bool) {
		chunk := make([]T, 0, size)
		for v := range seq {
			chunk = append(chunk, v)
			if len(chunk) == size {
				if !yield(chunk) {
					return
				}
				chunk = make([]T, 0, size)
			}
		}
		if len(chunk) > 0 {
			yield(chunk)
		}
	}
}

// ChunkSlice is Chunk over the elements of s.
func ChunkSlice[T any](s []T, size int) iter.Seq[[]T] {
	return Chunk(slices.Values(s), size)
}
