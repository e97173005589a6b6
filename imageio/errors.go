package imageio

import "errors"

var (
	// ErrFetch indicates the image bytes could not be retrieved.
	ErrFetch = errors.New("image fetch failed")

	// ErrDecode indicates the bytes were retrieved but are not a supported image.
	ErrDecode = errors.New("image decode failed")

	// ErrHTTPStatus indicates a remote server answered with a non-2xx status.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrInvalidS3Reference indicates an s3:// reference without bucket or key.
	ErrInvalidS3Reference = errors.New("s3 reference must be s3://bucket/key")

	// ErrInvalidDimensions indicates a non-positive resize target.
	ErrInvalidDimensions = errors.New("image dimensions must be positive")
)
