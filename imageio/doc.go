// Package imageio fetches and decodes images named by a core.Reference.
//
// Loading is split into two steps. A Fetcher opens a byte stream for a
// reference (local file, http(s) URL or s3:// object) and Decode turns the
// stream into an image.Image. Load combines both. All functions are safe for
// concurrent use and are pure functions of their reference: nothing is cached
// between calls.
//
// The package also provides the pixel transforms featurizer backends need:
// bilinear resizing, planar (CHW) RGB buffers, grayscale buffers and JPEG
// encoding.
package imageio
