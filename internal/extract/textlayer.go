package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textLayerStage reads the embedded text layer without rendering pixels.
// Each text run on a page is one item; items are joined with single
// spaces within a page and pages with newlines, so word boundaries
// survive fragmented runs. A page with no extractable text contributes
// nothing. An empty result is not an error here: the fallback combinator
// decides what empty means.
func textLayerStage(ctx context.Context, data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}

	var pages []string
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Rows come back top-to-bottom, runs left-to-right.
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var items []string
		for _, row := range rows {
			for _, run := range row.Content {
				if run.S == "" {
					continue
				}
				items = append(items, run.S)
			}
		}
		if len(items) == 0 {
			continue
		}
		pages = append(pages, strings.Join(items, " "))
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
