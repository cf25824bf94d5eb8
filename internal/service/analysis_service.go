package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/gateway"
	"go-fieldfix/internal/imaging"
	"go-fieldfix/internal/logger"
	"go-fieldfix/internal/observer"
	"go-fieldfix/internal/ocr"
	"go-fieldfix/internal/prompt"
	"go-fieldfix/internal/repository"
	"go-fieldfix/pkg/models"
)

const (
	sourceUpload = "upload"
	sourceURL    = "url"

	ocrHintPrefix = "Text visible in the image (OCR): "
)

// UploadRequest is an analysis request carrying the raw upload
type UploadRequest struct {
	Image    imaging.UploadedImage
	Category string
	Subject  string
	Context  string
}

// URLRequest is an analysis request referencing an image by URL
type URLRequest struct {
	URL      string
	Category string
	Subject  string
	Context  string
}

// AnalysisRequest is a validated request ready for prompt construction and inference.
type AnalysisRequest struct {
	Category    prompt.Category
	SubjectHint string
	Context     string
	Payload     imaging.EncodedPayload
}

// NewAnalysisRequest rejects an unknown category or an empty payload.
func NewAnalysisRequest(category prompt.Category, subjectHint, freeText string, payload imaging.EncodedPayload) (AnalysisRequest, error) {
	if !category.Valid() {
		return AnalysisRequest{}, apperrors.NewValidationError(fmt.Sprintf("unknown category %q", string(category)), nil)
	}
	if payload.Empty() {
		return AnalysisRequest{}, apperrors.NewValidationError("image payload is empty", nil)
	}
	return AnalysisRequest{
		Category:    category,
		SubjectHint: subjectHint,
		Context:     freeText,
		Payload:     payload,
	}, nil
}

// AnalysisService runs one analysis from upload (or URL) to report
type AnalysisService interface {
	Analyze(ctx context.Context, req UploadRequest) models.AnalysisResult
	AnalyzeURL(ctx context.Context, req URLRequest) models.AnalysisResult
}

// Dependencies groups the collaborators of the analysis service
type Dependencies struct {
	Normalizer imaging.Normalizer
	Builder    prompt.Builder
	Gateway    gateway.Gateway
	Images     repository.ImageRepository
	Extractor  ocr.TextExtractor
	Events     observer.Subject
}

type analysisService struct {
	normalizer imaging.Normalizer
	builder    prompt.Builder
	gateway    gateway.Gateway
	images     repository.ImageRepository
	extractor  ocr.TextExtractor
	events     observer.Subject
}

// NewAnalysisService creates the analysis service. Images, Extractor and Events are optional.
func NewAnalysisService(deps Dependencies) AnalysisService {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = ocr.NoopExtractor{}
	}
	return &analysisService{
		normalizer: deps.Normalizer,
		builder:    deps.Builder,
		gateway:    deps.Gateway,
		images:     deps.Images,
		extractor:  extractor,
		events:     deps.Events,
	}
}

// Analyze normalizes the upload, builds the prompt and queries the model.
// The gateway is never reached when the category or the image is rejected.
func (s *analysisService) Analyze(ctx context.Context, req UploadRequest) models.AnalysisResult {
	return s.run(ctx, sourceUpload, req.Category, req.Subject, req.Context, func() (imaging.UploadedImage, error) {
		return req.Image, nil
	})
}

// AnalyzeURL downloads the referenced image and then behaves like Analyze.
func (s *analysisService) AnalyzeURL(ctx context.Context, req URLRequest) models.AnalysisResult {
	return s.run(ctx, sourceURL, req.Category, req.Subject, req.Context, func() (imaging.UploadedImage, error) {
		return s.fetch(ctx, req.URL)
	})
}

type imageSource func() (imaging.UploadedImage, error)

func (s *analysisService) run(ctx context.Context, source, rawCategory, subject, freeText string, load imageSource) models.AnalysisResult {
	start := time.Now()

	category, err := prompt.ParseCategory(rawCategory)
	if err != nil {
		return s.fail(ctx, start, source, rawCategory, err)
	}
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Category: category.String(), Source: source})

	upload, err := load()
	if err != nil {
		return s.fail(ctx, start, source, category.String(), err)
	}

	payload, err := s.normalizer.Normalize(upload)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageRejected,
			Category:     category.String(),
			Source:       source,
			ErrorMessage: err.Error(),
			Metadata:     map[string]interface{}{"upload_bytes": len(upload.Data), "declared_type": upload.DeclaredType},
		})
		return s.fail(ctx, start, source, category.String(), err)
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType: observer.ImageNormalized,
		Category:  category.String(),
		Source:    source,
		Success:   true,
		Metadata: map[string]interface{}{
			"source_format": payload.SourceFormat,
			"width":         payload.Width,
			"height":        payload.Height,
			"payload_bytes": len(payload.Data),
		},
	})

	req, err := NewAnalysisRequest(category, subject, s.withTextHint(payload, freeText), payload)
	if err != nil {
		return s.fail(ctx, start, source, category.String(), err)
	}

	text, err := s.builder.Build(req.Category, req.SubjectHint, req.Context)
	if err != nil {
		return s.fail(ctx, start, source, category.String(), err)
	}

	result := s.gateway.Infer(ctx, text, req.Payload)
	if !result.IsSuccess() {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Category:       category.String(),
			Source:         source,
			ProcessingTime: time.Since(start),
			FailureKind:    string(result.FailureKind),
			ErrorMessage:   result.Message,
		})
		return result
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Category:       category.String(),
		Source:         source,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"report_chars": len(result.Text)},
	})
	return result
}

func (s *analysisService) fetch(ctx context.Context, imageURL string) (imaging.UploadedImage, error) {
	if s.images == nil {
		return imaging.UploadedImage{}, apperrors.NewConfigError("image URL intake is not configured", repository.ErrRepositoryUnavailable)
	}

	start := time.Now()
	fetched, err := s.images.FetchImage(ctx, imageURL)
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.ImageFetchFailed,
			Source:         sourceURL,
			ProcessingTime: time.Since(start),
			FailureKind:    string(apperrors.TypeOf(err)),
			ErrorMessage:   err.Error(),
		})
		return imaging.UploadedImage{}, err
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.ImageFetched,
		Source:         sourceURL,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"bytes": len(fetched.Data), "content_type": fetched.ContentType},
	})
	return imaging.UploadedImage{Data: fetched.Data, DeclaredType: fetched.ContentType}, nil
}

// withTextHint appends text read from the image to the user's context.
// OCR problems are logged and otherwise ignored.
func (s *analysisService) withTextHint(payload imaging.EncodedPayload, freeText string) string {
	raw, err := s.extractor.ExtractText(payload.Data)
	if err != nil {
		logger.WithError(err).Warn("Text extraction failed, continuing without hint")
		return freeText
	}
	hint := ocr.CleanHint(raw)
	if hint == "" {
		return freeText
	}
	logger.WithField("hint_chars", len(hint)).Debug("Text hint extracted from image")
	if strings.TrimSpace(freeText) == "" {
		return ocrHintPrefix + hint
	}
	return strings.TrimRight(freeText, "\n") + "\n\n" + ocrHintPrefix + hint
}

func (s *analysisService) fail(ctx context.Context, start time.Time, source, category string, err error) models.AnalysisResult {
	result := models.FailureFromError(err)
	logger.WithFields(logrus.Fields{
		"category":     category,
		"source":       source,
		"failure_kind": result.FailureKind,
	}).WithError(err).Debug("Analysis short-circuited")

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisFailed,
		Category:       category,
		Source:         source,
		ProcessingTime: time.Since(start),
		FailureKind:    string(result.FailureKind),
		ErrorMessage:   result.Message,
	})
	return result
}

func (s *analysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(ctx, event)
}
