// Package extract turns raw PDF bytes into a best-effort plain-text
// transcript. A fast structural pass over the text layer handles
// born-digital documents; scanned documents fall through to per-page
// rasterization and OCR. Extraction is a pure function of the input
// bytes: no partial results are persisted.
package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"docuchat/internal/ocr"
)

// Upscale factor applied before OCR so small print stays legible.
const ocrScale = 2.0

// Stage is one extraction attempt. Returning empty text without an error
// is a soft failure; the combinator moves on to the next stage.
type Stage func(ctx context.Context, data []byte) (string, error)

// fallback composes stages into a single stage that returns the first
// non-empty trimmed result. If every stage comes back empty or failing,
// the composite fails with ErrExtractionFailed carrying the last cause.
func fallback(stages ...Stage) Stage {
	return func(ctx context.Context, data []byte) (string, error) {
		var lastErr error
		for _, stage := range stages {
			text, err := stage(ctx, data)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				lastErr = err
				continue
			}
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				return trimmed, nil
			}
		}
		if lastErr != nil {
			return "", fmt.Errorf("%w: %v", ErrExtractionFailed, lastErr)
		}
		return "", ErrExtractionFailed
	}
}

type Extractor struct {
	raster      ocr.Rasterizer
	engine      ocr.Engine
	parallelism int

	// replaceable in tests
	textLayer Stage
}

type Option func(*Extractor)

// WithParallelism bounds how many pages are OCR'd concurrently.
func WithParallelism(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

func New(raster ocr.Rasterizer, engine ocr.Engine, opts ...Option) *Extractor {
	e := &Extractor{
		raster:      raster,
		engine:      engine,
		parallelism: 2,
		textLayer:   textLayerStage,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the text-layer stage and, when it yields nothing, the OCR
// stage. The caller bounds the whole operation through ctx.
func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	pipeline := fallback(e.textLayer, e.ocrStage)
	return pipeline(ctx, data)
}

// ocrStage renders every page at a fixed upscale and recognizes them.
// Pages are rendered sequentially but may be recognized concurrently;
// the final transcript always concatenates in page-index order.
func (e *Extractor) ocrStage(ctx context.Context, data []byte) (string, error) {
	doc, err := e.raster.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	total := doc.NumPages()
	if total == 0 {
		return "", nil
	}

	texts := make([]string, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	// A render failure must still wait for recognitions already in
	// flight before returning.
	var renderErr error
	for i := 0; i < total; i++ {
		img, err := doc.Render(i, ocrScale)
		if err != nil {
			renderErr = fmt.Errorf("render page %d failed: %w", i+1, err)
			break
		}
		g.Go(func() error {
			text, recErr := e.engine.Recognize(gctx, img)
			if recErr != nil {
				return fmt.Errorf("ocr page %d failed: %w", i+1, recErr)
			}
			texts[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if renderErr != nil {
		return "", renderErr
	}

	var pages []string
	for _, t := range texts {
		if t != "" {
			pages = append(pages, t)
		}
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
