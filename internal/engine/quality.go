package engine

import (
	"bytes"
	"image"

	// Registered so DecodeConfig can read the rasterizer's output formats.
	_ "image/jpeg"
	_ "image/png"

	"github.com/ktsuji/passbook-flow/internal/model"
)

// QualityFunc estimates how legible a page image is, in [0,1]. The score
// only drives strategy selection, so the heuristic is pluggable.
type QualityFunc func(page model.Page) float64

// defaultQualityBaseline is the score for an image whose metadata cannot be
// read: middling quality, which routes to the staged-verify strategy.
const defaultQualityBaseline = 0.7

// DefaultQuality scores a page from its pixel dimensions and compression
// density. Small scans and heavily compressed JPEGs lose points; generous
// resolution gains some.
func DefaultQuality(page model.Page) float64 {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(page.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return defaultQualityBaseline
	}

	score := defaultQualityBaseline

	minDim := cfg.Width
	if cfg.Height < minDim {
		minDim = cfg.Height
	}
	switch {
	case minDim >= 1600:
		score += 0.15
	case minDim < 800:
		score -= 0.25
	}

	// Bytes per pixel as a crude sharpness proxy: a page squeezed hard by
	// the lossy fallback has lost detail the models would need.
	bpp := float64(len(page.Data)) / float64(cfg.Width*cfg.Height)
	if bpp < 0.05 {
		score -= 0.2
	}

	return clamp01(score)
}
