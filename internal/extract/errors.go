package extract

import "errors"

// ErrExtractionFailed means both the text-layer pass and the OCR pass
// yielded nothing: the document appears to contain only scanned or image
// content with no recoverable text.
var ErrExtractionFailed = errors.New("no extractable text found in PDF")
