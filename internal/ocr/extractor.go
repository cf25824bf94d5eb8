// Package ocr extracts visible text (plant tags, seed packets, pesticide
// labels) from an image so it can be passed to the model as extra context.
package ocr

import (
	"strings"
	"unicode/utf8"
)

// MaxHintLength caps the extracted text handed to the prompt.
const MaxHintLength = 500

// TextExtractor reads text from encoded image bytes
type TextExtractor interface {
	ExtractText(image []byte) (string, error)
}

// NoopExtractor never finds text. It is used when OCR is disabled.
type NoopExtractor struct{}

func (NoopExtractor) ExtractText([]byte) (string, error) {
	return "", nil
}

// CleanHint collapses whitespace and truncates text to MaxHintLength runes.
func CleanHint(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= MaxHintLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:MaxHintLength])) + "…"
}
