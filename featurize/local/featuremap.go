package local

import (
	"image"
	"image/color"
	"math"
)

const (
	gridSize        = 4
	colorLevels     = 4
	colorBins       = colorLevels * colorLevels * colorLevels
	orientationBins = 8
	channels        = colorBins + orientationBins
)

// featureMap is a gridSize x gridSize map of channel activations, row-major by cell.
type featureMap [gridSize * gridSize][channels]float32

func buildFeatureMap(img image.Image) *featureMap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	fm := &featureMap{}
	if w == 0 || h == 0 {
		return fm
	}

	rgba, fast := img.(*image.RGBA)
	pixel := func(x, y int) color.RGBA {
		if fast {
			return rgba.RGBAAt(b.Min.X+x, b.Min.Y+y)
		}
		return color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
	}

	luma := make([]float32, w*h)
	var cellPixels [gridSize * gridSize]float32
	for y := 0; y < h; y++ {
		cy := y * gridSize / h
		for x := 0; x < w; x++ {
			cell := cy*gridSize + x*gridSize/w
			c := pixel(x, y)
			luma[y*w+x] = 0.299*float32(c.R) + 0.587*float32(c.G) + 0.114*float32(c.B)

			bin := int(c.R)*colorLevels/256*colorLevels*colorLevels +
				int(c.G)*colorLevels/256*colorLevels +
				int(c.B)*colorLevels/256
			fm[cell][bin]++
			cellPixels[cell]++
		}
	}

	for y := 1; y < h-1; y++ {
		cy := y * gridSize / h
		for x := 1; x < w-1; x++ {
			gx := luma[y*w+x+1] - luma[y*w+x-1]
			gy := luma[(y+1)*w+x] - luma[(y-1)*w+x]
			mag := float32(math.Hypot(float64(gx), float64(gy)))
			if mag == 0 {
				continue
			}
			angle := math.Atan2(float64(gy), float64(gx)) + math.Pi
			bin := int(angle/(2*math.Pi)*orientationBins) % orientationBins
			fm[cy*gridSize+x*gridSize/w][colorBins+bin] += mag / 255
		}
	}

	for cell := range fm {
		if cellPixels[cell] == 0 {
			continue
		}
		for ch := range fm[cell] {
			fm[cell][ch] /= cellPixels[cell]
		}
	}
	return fm
}

// flatten concatenates the cell vectors in row-major cell order.
func (fm *featureMap) flatten() []float32 {
	out := make([]float32, 0, len(fm)*channels)
	for cell := range fm {
		out = append(out, fm[cell][:]...)
	}
	return out
}

// sumPool sums activations over both spatial axes.
func (fm *featureMap) sumPool() []float32 {
	out := make([]float32, channels)
	for cell := range fm {
		for ch, v := range fm[cell] {
			out[ch] += v
		}
	}
	return out
}
