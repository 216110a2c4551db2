package llm

import (
	"bytes"
	"image/png"
	"math"

	"github.com/nfnt/resize"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/core"
)

// patchSize is the vision-encoder patch edge; model images use multiples of it.
const patchSize = 28

// ModelImage is a screenshot resized for a vision model.
type ModelImage struct {
	Data          []byte
	Width, Height int // size sent to the model
	SrcW, SrcH    int // size of the decoded screenshot
}

// PrepareImage downscales a PNG so that its pixel count lies within
// [minPixels, maxPixels] and both sides are multiples of 28. Input that is
// not a decodable PNG is passed through untouched with zero dimensions.
func PrepareImage(data []byte, maxPixels, minPixels int) ModelImage {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return ModelImage{Data: data}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tw, th := fitDimensions(w, h, maxPixels, minPixels)
	if tw == w && th == h {
		return ModelImage{Data: data, Width: w, Height: h, SrcW: w, SrcH: h}
	}

	scaled := resize.Resize(uint(tw), uint(th), img, resize.Bilinear)
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return ModelImage{Data: data, Width: w, Height: h, SrcW: w, SrcH: h}
	}
	return ModelImage{Data: buf.Bytes(), Width: tw, Height: th, SrcW: w, SrcH: h}
}

// fitDimensions rounds w,h to multiples of the patch size while keeping the
// aspect ratio and the pixel budget.
func fitDimensions(w, h, maxPixels, minPixels int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	round := func(v float64) int { return max(patchSize, int(math.Round(v/patchSize))*patchSize) }
	floor := func(v float64) int { return max(patchSize, int(math.Floor(v/patchSize))*patchSize) }
	ceil := func(v float64) int { return max(patchSize, int(math.Ceil(v/patchSize))*patchSize) }

	tw, th := round(float64(w)), round(float64(h))
	switch {
	case maxPixels > 0 && tw*th > maxPixels:
		beta := math.Sqrt(float64(w*h) / float64(maxPixels))
		tw, th = floor(float64(w)/beta), floor(float64(h)/beta)
	case minPixels > 0 && tw*th < minPixels:
		beta := math.Sqrt(float64(minPixels) / float64(w*h))
		tw, th = ceil(float64(w)*beta), ceil(float64(h)*beta)
	}
	return tw, th
}

// ToScreen maps a point in model-image space to a screen of the given size.
// Zero sizes fall back to the decoded screenshot size.
func (m ModelImage) ToScreen(p core.Point, screenW, screenH int) core.Point {
	if screenW <= 0 || screenH <= 0 {
		screenW, screenH = m.SrcW, m.SrcH
	}
	if m.Width <= 0 || m.Height <= 0 || screenW <= 0 || screenH <= 0 {
		return p
	}
	return core.Point{
		X: clamp(int(math.Round(float64(p.X)*float64(screenW)/float64(m.Width))), 0, screenW-1),
		Y: clamp(int(math.Round(float64(p.Y)*float64(screenH)/float64(m.Height))), 0, screenH-1),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
