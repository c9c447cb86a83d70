package ocr

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

const baseDPI = 72

// FitzRasterizer renders PDF pages through MuPDF.
type FitzRasterizer struct{}

func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

func (FitzRasterizer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering failed: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(pageIndex int, scale float64) (image.Image, error) {
	if scale <= 0 {
		scale = 1
	}
	img, err := d.doc.ImageDPI(pageIndex, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("mupdf page %d: %w", pageIndex+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
