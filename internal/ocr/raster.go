package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// minRasterEdge is the shortest edge small images are upscaled to before
	// recognition
	minRasterEdge = 300

	// maxRasterEdge bounds the longest edge of the surface
	maxRasterEdge = 4000

	// maxSourcePixels rejects images too large to decode safely
	maxSourcePixels = 50_000_000
)

// Rasterize decodes data, draws it onto an opaque white RGBA surface and
// returns the surface encoded as PNG
func Rasterize(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for raster surface: %w", err)
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("image of %dx%d is too large to rasterize", cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for raster surface: %w", err)
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image has no pixels")
	}

	w, h := b.Dx(), b.Dy()
	dstW, dstH, scale := rasterSize(w, h)
	dstRect := image.Rect(0, 0, dstW, dstH)

	surface := image.NewRGBA(dstRect)
	draw.Draw(surface, dstRect, image.White, image.Point{}, draw.Src)
	if scale == 1 {
		draw.Draw(surface, dstRect, src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(surface, dstRect, src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, surface); err != nil {
		return nil, fmt.Errorf("failed to encode raster surface: %w", err)
	}
	return buf.Bytes(), nil
}

// rasterSize upscales the shortest edge towards minRasterEdge while keeping
// the longest edge within maxRasterEdge
func rasterSize(w, h int) (int, int, float64) {
	scale := 1.0
	if short := min(w, h); short < minRasterEdge {
		scale = float64(minRasterEdge) / float64(short)
	}
	if long := float64(max(w, h)); long*scale > maxRasterEdge {
		scale = maxRasterEdge / long
	}
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)), scale
}
