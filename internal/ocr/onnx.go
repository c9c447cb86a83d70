package ocr

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// Rows darker than this (0..255 luminance) count as ink when the page is
// split into text lines.
const inkThreshold = 160

// Recognizer runs a CRNN-style English recognition model over each text
// line of a page bitmap and decodes the output with greedy CTC.
type Recognizer struct {
	mu sync.Mutex

	modelPath   string
	charsetPath string
	libPath     string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	charset []rune
	lineH   int
	lineW   int
	inited  bool
}

// NewRecognizer creates a recognizer that lazily loads the ONNX model and
// charset on first use.
func NewRecognizer(modelPath, charsetPath, onnxLibPath string) *Recognizer {
	return &Recognizer{
		modelPath:   modelPath,
		charsetPath: charsetPath,
		libPath:     onnxLibPath,
	}
}

// initOnce loads the ONNX shared library, environment, charset, and session.
func (r *Recognizer) initOnce() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inited {
		return nil
	}

	if r.libPath != "" {
		ort.SetSharedLibraryPath(r.libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	charset, err := loadCharset(r.charsetPath)
	if err != nil {
		return fmt.Errorf("load charset: %w", err)
	}
	r.charset = charset

	inputs, outputs, err := ort.GetInputOutputInfo(r.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}
	inputShape := inputs[0].Dimensions
	outputShape := outputs[0].Dimensions
	if len(inputShape) != 4 {
		return fmt.Errorf("unexpected input rank %d, want NCHW", len(inputShape))
	}
	r.lineH = int(inputShape[2])
	r.lineW = int(inputShape[3])

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	r.input = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	r.output = outputTensor

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(r.modelPath, inputNames, outputNames,
		[]ort.Value{r.input}, []ort.Value{r.output}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	r.session = session
	r.inited = true
	return nil
}

func loadCharset(path string) ([]rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var charset []rune
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			charset = append(charset, ' ')
			continue
		}
		charset = append(charset, []rune(line)[0])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(charset) == 0 {
		return nil, fmt.Errorf("charset file %q is empty", path)
	}
	return charset, nil
}

// Recognize splits the page into text-line bands and decodes each one in
// reading order.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := r.initOnce(); err != nil {
		return "", err
	}

	gray := toGray(img)
	bands := lineBands(gray)

	var lines []string
	for _, band := range bands {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := r.recognizeLine(gray, band)
		if err != nil {
			return "", err
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Recognizer) recognizeLine(gray *image.Gray, band image.Rectangle) (string, error) {
	inputData := r.preprocessLine(gray, band)

	r.mu.Lock()
	inData := r.input.GetData()
	if len(inData) < len(inputData) {
		r.mu.Unlock()
		return "", fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(inputData))
	}
	copy(inData, inputData)
	err := r.session.Run()
	if err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("onnx run: %w", err)
	}
	outData := make([]float32, len(r.output.GetData()))
	copy(outData, r.output.GetData())
	r.mu.Unlock()

	return r.ctcDecode(outData), nil
}

// preprocessLine scales the band to the model's line height, preserves
// aspect ratio, pads the remainder with white, and normalizes to [-1, 1].
func (r *Recognizer) preprocessLine(gray *image.Gray, band image.Rectangle) []float32 {
	scaledW := band.Dx() * r.lineH / band.Dy()
	if scaledW <= 0 {
		scaledW = 1
	}
	if scaledW > r.lineW {
		scaledW = r.lineW
	}

	dst := image.NewGray(image.Rect(0, 0, r.lineW, r.lineH))
	for i := range dst.Pix {
		dst.Pix[i] = 0xff
	}
	draw.CatmullRom.Scale(dst, image.Rect(0, 0, scaledW, r.lineH), gray, band, draw.Src, nil)

	out := make([]float32, r.lineH*r.lineW)
	for i, p := range dst.Pix {
		out[i] = (float32(p)/255.0 - 0.5) / 0.5
	}
	return out
}

// ctcDecode collapses repeated argmax indexes and drops the blank class
// (index 0). Class i+1 maps to charset[i].
func (r *Recognizer) ctcDecode(out []float32) string {
	classes := len(r.charset) + 1
	steps := len(out) / classes
	var sb strings.Builder
	prev := -1
	for t := 0; t < steps; t++ {
		best := 0
		bestScore := out[t*classes]
		for c := 1; c < classes; c++ {
			if s := out[t*classes+c]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best != 0 && best != prev {
			sb.WriteRune(r.charset[best-1])
		}
		prev = best
	}
	return strings.TrimSpace(sb.String())
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// lineBands finds horizontal text bands by ink projection: maximal runs
// of rows containing at least one pixel darker than the threshold.
func lineBands(gray *image.Gray) []image.Rectangle {
	bounds := gray.Bounds()
	var bands []image.Rectangle
	start := -1
	for y := bounds.Min.Y; y <= bounds.Max.Y; y++ {
		inky := false
		if y < bounds.Max.Y {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if gray.GrayAt(x, y).Y < inkThreshold {
					inky = true
					break
				}
			}
		}
		if inky && start < 0 {
			start = y
		}
		if !inky && start >= 0 {
			bands = append(bands, image.Rect(bounds.Min.X, start, bounds.Max.X, y))
			start = -1
		}
	}
	return bands
}

