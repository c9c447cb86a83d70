// Package ocr turns rendered PDF page bitmaps into text. Rendering and
// recognition sit behind small interfaces so the extraction pipeline can
// be exercised without a native renderer or a loaded model.
package ocr

import (
	"context"
	"image"
)

// Engine recognizes text in a single page bitmap.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Rasterizer opens a PDF byte stream for page rendering.
type Rasterizer interface {
	Open(data []byte) (Document, error)
}

// Document renders individual pages. Page indexes are zero-based and
// follow the PDF's physical page order.
type Document interface {
	NumPages() int
	Render(pageIndex int, scale float64) (image.Image, error)
	Close() error
}
