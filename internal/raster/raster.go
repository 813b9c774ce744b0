// Package raster converts uploaded documents into per-page images sized for
// vision model APIs.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	"github.com/gen2brain/go-fitz"

	"github.com/ktsuji/passbook-flow/internal/common"
	"github.com/ktsuji/passbook-flow/internal/model"
	"github.com/ktsuji/passbook-flow/internal/service"
)

const (
	// targetDPI balances legibility against the provider payload limit.
	targetDPI = 200

	// maxImageBytes is a best-effort cap, not a hard contract; the floor
	// quality result is accepted even when still over it.
	maxImageBytes = 4 << 20

	jpegStartQuality = 85
	jpegQualityStep  = 10
	jpegQualityFloor = 30
)

// DetectKind sniffs the document type from its leading magic bytes.
func DetectKind(data []byte) model.DocumentKind {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return model.KindPDF
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return model.KindJPEG
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return model.KindPNG
	default:
		return model.KindUnknown
	}
}

// Rasterizer renders PDF pages to images.
type Rasterizer struct {
	dpi float64
}

// New creates a rasterizer at the default resolution.
func New() *Rasterizer {
	return &Rasterizer{dpi: targetDPI}
}

// Rasterize renders every page of a PDF byte stream in page order.
// Per-page progress is scaled into [progressFrom, progressTo] on the sink.
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, sink service.ProgressSink, progressFrom, progressTo int) ([]model.Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRasterization, err)
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			slog.Error("failed to close PDF document", "error", closeErr)
		}
	}()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", common.ErrRasterization)
	}

	pages := make([]model.Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if sink != nil {
			percent := progressFrom + (i*(progressTo-progressFrom))/pageCount
			sink.Notify(fmt.Sprintf("Converting page %d/%d to image...", i+1, pageCount), percent)
		}

		img, err := doc.ImageDPI(i, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", common.ErrRasterization, i+1, err)
		}

		encoded, mediaType, err := encodeUnderCap(img)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", common.ErrRasterization, i+1, err)
		}

		slog.Debug("rasterized page",
			"page", i+1,
			"pages", pageCount,
			"bytes", len(encoded),
			"media_type", mediaType)

		pages = append(pages, model.Page{
			Index:     i,
			Data:      encoded,
			MediaType: mediaType,
		})
	}

	return pages, nil
}

// encodeUnderCap encodes lossless first, then falls back to JPEG with
// decreasing quality until the image fits under the byte cap or the quality
// floor is hit.
func encodeUnderCap(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("png encode failed: %w", err)
	}
	if buf.Len() <= maxImageBytes {
		return buf.Bytes(), "image/png", nil
	}

	slog.Debug("page image over byte cap, re-encoding as JPEG", "png_bytes", buf.Len())

	var jpegBuf bytes.Buffer
	for quality := jpegStartQuality; ; quality -= jpegQualityStep {
		jpegBuf.Reset()
		if err := jpeg.Encode(&jpegBuf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("jpeg encode failed: %w", err)
		}
		if jpegBuf.Len() <= maxImageBytes || quality-jpegQualityStep < jpegQualityFloor {
			slog.Debug("jpeg fallback encoded", "quality", quality, "bytes", jpegBuf.Len())
			return jpegBuf.Bytes(), "image/jpeg", nil
		}
	}
}
