package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageWithInkRows(w, h int, inkRows ...int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for _, y := range inkRows {
		for x := 2; x < w-2; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	return img
}

func TestLineBandsSplitsSeparatedRuns(t *testing.T) {
	img := pageWithInkRows(40, 30, 5, 6, 7, 20, 21)

	bands := lineBands(img)
	require.Len(t, bands, 2)
	assert.Equal(t, image.Rect(0, 5, 40, 8), bands[0])
	assert.Equal(t, image.Rect(0, 20, 40, 22), bands[1])
}

func TestLineBandsBlankPage(t *testing.T) {
	img := pageWithInkRows(40, 30)
	assert.Empty(t, lineBands(img))
}

func TestLineBandsInkTouchingBottomEdge(t *testing.T) {
	img := pageWithInkRows(40, 30, 28, 29)

	bands := lineBands(img)
	require.Len(t, bands, 1)
	assert.Equal(t, image.Rect(0, 28, 40, 30), bands[0])
}

func TestCTCDecodeCollapsesRepeatsAndBlanks(t *testing.T) {
	r := &Recognizer{charset: []rune{'a', 'b', 'c'}}

	// 4 classes (blank + charset), argmax sequence: blank, a, a, blank, b, c
	logit := func(class int) []float32 {
		row := make([]float32, 4)
		row[class] = 1
		return row
	}
	var out []float32
	for _, class := range []int{0, 1, 1, 0, 2, 3} {
		out = append(out, logit(class)...)
	}

	assert.Equal(t, "abc", r.ctcDecode(out))
}

func TestCTCDecodeBlankSeparatesRepeatedLetters(t *testing.T) {
	r := &Recognizer{charset: []rune{'o'}}

	logit := func(class int) []float32 {
		row := make([]float32, 2)
		row[class] = 1
		return row
	}
	var out []float32
	for _, class := range []int{1, 0, 1} {
		out = append(out, logit(class)...)
	}

	assert.Equal(t, "oo", r.ctcDecode(out))
}

func TestPreprocessLineNormalizesAndPads(t *testing.T) {
	r := &Recognizer{lineH: 4, lineW: 16}

	gray := pageWithInkRows(8, 8, 2, 3, 4, 5)
	band := image.Rect(0, 2, 8, 6)

	out := r.preprocessLine(gray, band)
	require.Len(t, out, 4*16)

	// Right side of each row is white padding, normalized to 1.
	assert.InDelta(t, 1.0, out[15], 0.001)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, float32(-1.0))
		assert.LessOrEqual(t, v, float32(1.0))
	}
}

func TestToGrayPassthrough(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	assert.Same(t, gray, toGray(gray))

	rgba := image.NewRGBA(image.Rect(0, 0, 3, 3))
	converted := toGray(rgba)
	assert.Equal(t, rgba.Bounds(), converted.Bounds())
}
