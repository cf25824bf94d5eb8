//go:build !ocr

package ocr

import apperrors "go-fieldfix/internal/errors"

// NewTesseractExtractor reports a config error: this binary was built without
// the ocr build tag and has no Tesseract support.
func NewTesseractExtractor(language string) (TextExtractor, error) {
	return nil, apperrors.NewConfigError("OCR_ENABLED is set but the binary was built without the ocr tag", nil)
}
