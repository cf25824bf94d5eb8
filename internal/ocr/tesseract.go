//go:build ocr

package ocr

import (
	"github.com/otiai10/gosseract/v2"

	apperrors "go-fieldfix/internal/errors"
)

// TesseractExtractor runs Tesseract through gosseract. A client is created per
// call because gosseract clients are not safe for concurrent use.
type TesseractExtractor struct {
	language string
}

// NewTesseractExtractor creates an extractor for the given Tesseract language code.
func NewTesseractExtractor(language string) (TextExtractor, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(language); err != nil {
		return nil, apperrors.NewConfigError("invalid OCR language", err)
	}
	return &TesseractExtractor{language: language}, nil
}

func (e *TesseractExtractor) ExtractText(image []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return "", err
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return CleanHint(text), nil
}
