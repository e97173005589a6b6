package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

// SolidImage creates a width x height image filled with c.
func SolidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// WritePNG writes a solid-color PNG to path for use as a test fixture.
func WritePNG(path string, width, height int, c color.Color) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, SolidImage(width, height, c)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
