// Package gateway sends an encoded image and a prompt to the external
// multimodal model and returns its answer as an AnalysisResult.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/imaging"
	"go-fieldfix/internal/logger"
	"go-fieldfix/pkg/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-pro"

	apiVersion = "v1beta"
)

// Gateway invokes the external inference service. Infer blocks until the
// service answers, the call fails or the timeout elapses; it always returns a
// result and never an error.
type Gateway interface {
	Infer(ctx context.Context, prompt string, payload imaging.EncodedPayload) models.AnalysisResult
}

// Options configures the Gemini gateway
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds a whole Infer call, retries included.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transport failure.
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

type geminiGateway struct {
	opts   Options
	client *genai.Client
}

// NewGeminiGateway creates the gateway once at startup. A missing API key is a
// config error and no gateway is returned.
func NewGeminiGateway(opts Options) (Gateway, error) {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.APIKey == "" {
		return nil, apperrors.NewConfigError("inference API key is not configured", nil)
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewConfigError(fmt.Sprintf("invalid inference base URL %q", opts.BaseURL), err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: tracedClient(opts.HTTPClient),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base.String() + "/",
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create inference client", err)
	}

	return &geminiGateway{opts: opts, client: client}, nil
}

func (g *geminiGateway) Infer(ctx context.Context, prompt string, payload imaging.EncodedPayload) (result models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Inference gateway panicked")
			result = models.Failure(apperrors.ErrorTypeInternal, "inference failed unexpectedly")
		}
	}()

	if payload.Empty() {
		return models.Failure(apperrors.ErrorTypeValidation, "image payload is missing")
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(payload.Data, payload.MIMEType),
		},
	}}

	text, err := g.generate(ctx, contents)
	fields := logrus.Fields{
		"model":              g.opts.Model,
		"payload_bytes":      len(payload.Data),
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}
	if err != nil {
		fields["failure_kind"] = apperrors.TypeOf(err)
		logger.WithError(err).WithFields(fields).Error("Inference failed")
		return models.FailureFromError(err)
	}

	fields["response_chars"] = len(text)
	logger.WithFields(fields).Info("Inference completed")
	return models.Success(text)
}

// generate retries transport failures with a linear backoff; service errors
// are returned immediately.
func (g *geminiGateway) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	attempts := g.opts.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		text, err := g.call(ctx, contents)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !apperrors.IsType(err, apperrors.ErrorTypeTransport) || ctx.Err() != nil {
			break
		}

		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * g.opts.RetryDelay
			logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
			}).Warn("Retrying inference request")

			select {
			case <-ctx.Done():
				return "", contextError(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return "", lastErr
}

func (g *geminiGateway) call(ctx context.Context, contents []*genai.Content) (string, error) {
	trace := &callTrace{}
	resp, err := g.client.Models.GenerateContent(withTrace(ctx, trace), g.opts.Model, contents, nil)
	if err != nil {
		return "", classifyError(ctx, trace, err)
	}
	return responseText(resp)
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTransportError("inference request timed out", err)
	}
	return apperrors.NewTransportError("inference request was cancelled", err)
}

// classifyError maps a failed GenerateContent call to a failure kind. An error
// without any HTTP response is a transport failure; an error after a response
// arrived is the service's fault.
func classifyError(ctx context.Context, trace *callTrace, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextError(ctxErr)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return classifyStatus(apiErr.Code, apiErr.Message, err)
	}

	switch {
	case trace.status == 0:
		return apperrors.NewTransportError("failed to reach inference service", err)
	case trace.status >= http.StatusMultipleChoices:
		return classifyStatus(trace.status, "", err)
	default:
		return apperrors.NewServiceError("inference service returned a malformed response", err)
	}
}

func classifyStatus(statusCode int, message string, cause error) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return apperrors.NewConfigError("inference service rejected the API key", cause).WithDetails(message)
	case statusCode == http.StatusTooManyRequests:
		return apperrors.NewServiceError("inference service quota exceeded: "+message, cause)
	default:
		return apperrors.NewServiceError(fmt.Sprintf("inference service returned an error: %s", message), cause)
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", apperrors.NewServiceError("inference service returned an empty result", nil)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", apperrors.NewServiceError(
			fmt.Sprintf("inference service blocked the request (%s)", resp.PromptFeedback.BlockReason), nil)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperrors.NewServiceError("inference service returned an empty result", nil)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		if reason := string(resp.Candidates[0].FinishReason); reason != "" {
			return "", apperrors.NewServiceError(fmt.Sprintf("inference service returned an empty result (%s)", reason), nil)
		}
		return "", apperrors.NewServiceError("inference service returned an empty result", nil)
	}
	return text, nil
}
