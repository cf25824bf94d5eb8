package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-fieldfix/internal/config"
	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/imaging"
	"go-fieldfix/internal/logger"
	"go-fieldfix/internal/observer"
	"go-fieldfix/internal/prompt"
	"go-fieldfix/internal/service"
	"go-fieldfix/pkg/models"
)

const imageField = "image"

type handler struct {
	svc      service.AnalysisService
	metrics  *observer.MetricsObserver
	renderer *ReportRenderer
	cfg      *config.Config
}

// NewHandler builds the HTTP surface. metrics may be nil.
func NewHandler(svc service.AnalysisService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	h := &handler{
		svc:      svc,
		metrics:  metrics,
		renderer: NewReportRenderer(),
		cfg:      cfg,
	}

	r := gin.Default()
	r.SetHTMLTemplate(parseTemplates())

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/", h.index)
	r.POST("/analyze", h.analyzePage)
	r.GET("/metrics", h.metricsSnapshot)

	api := r.Group("/api/v1")
	api.GET("/categories", listCategories)
	api.POST("/analyze", h.analyzeUpload)
	api.POST("/analyze/url", h.analyzeURL)

	return r
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{Categories: categoryInfos()})
}

// analyzePage serves the HTML form submission
func (h *handler) analyzePage(c *gin.Context) {
	req, uploadErr := h.bindUpload(c)
	if uploadErr != nil {
		uploadErr.log(c)
		c.HTML(uploadErr.code, "report.html", reportPage{
			Category:    canonicalCategory(req.Category),
			Subject:     strings.TrimSpace(req.Subject),
			Failed:      true,
			FailureKind: string(apperrors.ErrorTypeValidation),
			Message:     uploadErr.message,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	result := h.svc.Analyze(ctx, req)
	page := reportPage{
		Category: canonicalCategory(req.Category),
		Subject:  strings.TrimSpace(req.Subject),
	}

	code := http.StatusOK
	if result.IsSuccess() {
		report, err := h.renderer.Render(result.Text)
		if err != nil {
			_ = c.Error(apperrors.NewInternalError("failed to render report", err))
			return
		}
		page.Report = report
	} else {
		code = apperrors.StatusCodeFor(result.FailureKind)
		page.Failed = true
		page.FailureKind = string(result.FailureKind)
		page.Message = result.Message
	}
	c.HTML(code, "report.html", page)
}

// analyzeUpload serves the multipart JSON API
func (h *handler) analyzeUpload(c *gin.Context) {
	startTime := time.Now()
	req, uploadErr := h.bindUpload(c)
	if uploadErr != nil {
		respondError(c, uploadErr.code, uploadErr.message, uploadErr.err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"path":         c.Request.URL.Path,
		"category":     req.Category,
		"upload_bytes": len(req.Image.Data),
		"ip":           c.ClientIP(),
	}).Info("Processing image upload")

	h.respondResult(c, req.Category, h.svc.Analyze(ctx, req), startTime)
}

// analyzeURL serves the JSON API for images referenced by URL
func (h *handler) analyzeURL(c *gin.Context) {
	startTime := time.Now()

	var req models.URLAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"path":     c.Request.URL.Path,
		"category": req.Category,
		"url":      req.URL,
		"ip":       c.ClientIP(),
	}).Info("Processing image URL")

	result := h.svc.AnalyzeURL(ctx, service.URLRequest{
		URL:      req.URL,
		Category: req.Category,
		Subject:  req.Subject,
		Context:  req.Context,
	})
	h.respondResult(c, req.Category, result, startTime)
}

func (h *handler) metricsSnapshot(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetMetrics())
}

func listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, categoryInfos())
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// uploadError is a multipart form that could not be read
type uploadError struct {
	code    int
	message string
	err     error
}

func (e *uploadError) log(c *gin.Context) {
	logger.WithError(e.err).WithFields(logrus.Fields{
		"status_code": e.code,
		"message":     e.message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")
}

// bindUpload reads the multipart form. A missing image part yields an empty
// upload, which the service rejects as undecodable. The caller decides how a
// form error is rendered.
func (h *handler) bindUpload(c *gin.Context) (service.UploadRequest, *uploadError) {
	req := service.UploadRequest{
		Category: c.PostForm("category"),
		Subject:  c.PostForm("subject"),
		Context:  c.PostForm("context"),
	}

	file, err := c.FormFile(imageField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req, nil
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, &uploadError{http.StatusRequestEntityTooLarge, "request body too large", err}
		}
		return req, &uploadError{http.StatusBadRequest, "invalid multipart form", err}
	}

	f, err := file.Open()
	if err != nil {
		return req, &uploadError{http.StatusBadRequest, "failed to open uploaded image", err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return req, &uploadError{http.StatusBadRequest, "failed to read uploaded image", err}
	}

	req.Image = imaging.UploadedImage{
		Data:         data,
		DeclaredType: file.Header.Get("Content-Type"),
	}
	return req, nil
}

func (h *handler) respondResult(c *gin.Context, category string, result models.AnalysisResult, startTime time.Time) {
	duration := time.Since(startTime)
	resp := models.AnalysisResponse{
		Status:           result.Status,
		Category:         canonicalCategory(category),
		ProcessingTimeMs: duration.Milliseconds(),
	}

	if !result.IsSuccess() {
		resp.FailureKind = string(result.FailureKind)
		resp.Message = result.Message
		logger.WithFields(logrus.Fields{
			"path":               c.Request.URL.Path,
			"failure_kind":       result.FailureKind,
			"processing_time_ms": duration.Milliseconds(),
		}).Warn("Image analysis failed")
		c.JSON(apperrors.StatusCodeFor(result.FailureKind), resp)
		return
	}

	resp.Report = result.Text
	if html, err := h.renderer.Render(result.Text); err != nil {
		logger.WithError(err).Warn("Failed to render report HTML")
	} else {
		resp.ReportHTML = string(html)
	}

	logger.WithFields(logrus.Fields{
		"path":               c.Request.URL.Path,
		"category":           resp.Category,
		"processing_time_ms": duration.Milliseconds(),
	}).Info("Image analysis completed successfully")
	c.JSON(http.StatusOK, resp)
}

func categoryInfos() []models.CategoryInfo {
	categories := prompt.Categories()
	infos := make([]models.CategoryInfo, 0, len(categories))
	for _, category := range categories {
		infos = append(infos, models.CategoryInfo{
			Name:         category.String(),
			SubjectLabel: prompt.SubjectLabel(category),
			ExtraSection: prompt.ExtraSection(category),
		})
	}
	return infos
}

func canonicalCategory(raw string) string {
	if category, err := prompt.ParseCategory(raw); err == nil {
		return category.String()
	}
	return strings.TrimSpace(raw)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
