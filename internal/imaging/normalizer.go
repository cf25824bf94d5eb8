// Package imaging turns uploaded image bytes into the single payload format
// sent to the inference service.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/logger"
)

// PayloadMIMEType is the only MIME type an EncodedPayload ever carries.
const PayloadMIMEType = "image/jpeg"

// UploadedImage is the raw upload as received from the user.
type UploadedImage struct {
	Data []byte
	// DeclaredType is the client-supplied content type. It is advisory only.
	DeclaredType string
}

// EncodedPayload is the canonical re-encoded image.
type EncodedPayload struct {
	Data         []byte
	MIMEType     string
	Width        int
	Height       int
	SourceFormat string
}

// Empty reports whether the payload carries no image data.
func (p EncodedPayload) Empty() bool {
	return len(p.Data) == 0
}

// Options bounds and tunes normalization
type Options struct {
	Quality      int
	MaxDimension int
	MaxPixels    int
}

// DefaultOptions returns the normalization defaults
func DefaultOptions() Options {
	return Options{
		Quality:      85,
		MaxDimension: 2048,
		MaxPixels:    50_000_000,
	}
}

// Normalizer converts uploads into EncodedPayloads.
type Normalizer interface {
	Normalize(img UploadedImage) (EncodedPayload, error)
}

type normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer. Zero option fields fall back to DefaultOptions.
func NewNormalizer(opts Options) Normalizer {
	def := DefaultOptions()
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &normalizer{opts: opts}
}

// Normalize decodes the upload by sniffing its content, flattens transparency,
// bounds its dimensions and re-encodes it as JPEG. Any failure is a decode error;
// no partial payload is ever returned.
func (n *normalizer) Normalize(img UploadedImage) (payload EncodedPayload, err error) {
	if len(img.Data) == 0 {
		return EncodedPayload{}, apperrors.NewDecodeError("uploaded image is empty", nil)
	}

	// Image decoders may panic on hostile input.
	defer func() {
		if r := recover(); r != nil {
			payload = EncodedPayload{}
			err = apperrors.NewDecodeError("image could not be decoded", fmt.Errorf("decoder panic: %v", r))
		}
	}()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return EncodedPayload{}, apperrors.NewDecodeError("unsupported or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return EncodedPayload{}, apperrors.NewDecodeError("image has no pixels", nil)
	}
	if cfg.Width*cfg.Height > n.opts.MaxPixels {
		return EncodedPayload{}, apperrors.NewDecodeError(
			fmt.Sprintf("image is too large (%dx%d)", cfg.Width, cfg.Height), nil)
	}

	if declared := declaredFormat(img.DeclaredType); declared != "" && declared != format {
		logger.WithFields(logrus.Fields{
			"declared_type":   img.DeclaredType,
			"detected_format": format,
		}).Debug("Declared content type does not match image content")
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return EncodedPayload{}, apperrors.NewDecodeError("unsupported or corrupt image", err)
	}

	canvas := n.flatten(decoded)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: n.opts.Quality}); err != nil {
		return EncodedPayload{}, apperrors.NewDecodeError("failed to re-encode image", err)
	}

	bounds := canvas.Bounds()
	return EncodedPayload{
		Data:         buf.Bytes(),
		MIMEType:     PayloadMIMEType,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
	}, nil
}

// flatten draws src onto an opaque white canvas, scaling it down when its
// longest side exceeds MaxDimension.
func (n *normalizer) flatten(src image.Image) *image.RGBA {
	sb := src.Bounds()
	w, h := scaledSize(sb.Dx(), sb.Dy(), n.opts.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

func scaledSize(w, h, maxDim int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return w, h
	}
	sw := w * maxDim / longest
	sh := h * maxDim / longest
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

// declaredFormat maps a MIME type to the format name used by image.Decode.
func declaredFormat(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return ""
	}
}
