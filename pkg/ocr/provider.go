package ocr

import "errors"

// ErrExtractionFailed signals that OCR produced no usable text. Callers abort
// the photo flow on this outcome; it is recoverable, never fatal.
var ErrExtractionFailed = errors.New("ocr: no usable text extracted")

// Provider extracts text from an image file on disk.
//
// The caller owns the file and its cleanup; providers must not leave extra
// temporary artifacts behind regardless of outcome.
type Provider interface {
	Extract(imagePath string) (string, error)
}
