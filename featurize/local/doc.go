// Package local implements embedding featurizers that run entirely
// in-process.
//
// Both backends build the same spatial feature map: the resized image is
// split into a grid of cells and every cell gets a channel vector of
// quantized color occupancy followed by magnitude-weighted gradient
// orientations. The dense backend flattens the map, keeping spatial layout.
// The crow backend sum-pools the map over both spatial axes, producing a
// shorter vector that ignores where in the frame content appears.
package local
