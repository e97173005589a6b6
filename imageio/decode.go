package imageio

import (
	"context"
	"fmt"
	"image"
	"io"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/poiesic/imgfeat/core"
)

// Decode reads an image in any registered format and reports the format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, format, nil
}

// Load fetches and decodes the image named by ref.
func (f *Fetcher) Load(ctx context.Context, ref core.Reference) (image.Image, error) {
	rc, err := f.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, _, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return img, nil
}
