package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/logger"
)

// DefaultMaxImageBytes caps downloads when no explicit limit is configured.
const DefaultMaxImageBytes int64 = 10 * 1024 * 1024

// FetchedImage holds raw image bytes as downloaded; decoding is left to the normalizer.
type FetchedImage struct {
	Data        []byte
	ContentType string
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error)
}

// URLChecker vets every URL the fetcher is about to follow
type URLChecker interface {
	ValidateImageURL(imageURL string) error
}

// HTTPImageFetcher downloads images over HTTP(S)
type HTTPImageFetcher struct {
	client     *http.Client
	maxBytes   int64
	attempts   int
	retryDelay time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. timeout bounds each attempt.
// Redirect targets are checked with checker; a nil checker only limits hops.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64, checker URLChecker) *HTTPImageFetcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		// Connection pooling sized for single image downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				if checker == nil {
					return nil
				}
				if err := checker.ValidateImageURL(req.URL.String()); err != nil {
					return apperrors.NewValidationError("image redirect target rejected", err)
				}
				return nil
			},
		},
		maxBytes:   maxBytes,
		attempts:   3,
		retryDelay: time.Second,
	}
}

// FetchImage downloads the image at imageURL. Transport errors and 5xx
// responses are retried; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (*FetchedImage, error) {
	var lastErr error

	for attempt := 0; attempt < h.attempts; attempt++ {
		img, retryable, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return img, nil
		}
		lastErr = err

		if !retryable || ctx.Err() != nil {
			break
		}

		// Sleep before next retry (not on last attempt)
		if attempt < h.attempts-1 {
			logger.WithError(err).WithFields(logrus.Fields{
				"url":     imageURL,
				"attempt": attempt + 1,
			}).Debug("Retrying image download")

			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("image download timed out", ctx.Err())
			case <-time.After(time.Duration(attempt+1) * h.retryDelay):
			}
		}
	}

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.NewTimeoutError("image download timed out", lastErr)
	}
	return nil, lastErr
}

func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) (*FetchedImage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, apperrors.NewValidationError("invalid image URL", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "FieldFix/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, false, err
		}
		return nil, true, apperrors.NewTransportError("failed to fetch image", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, false, apperrors.NewNotFoundError("image not found",
			fmt.Errorf("client error: status code %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, apperrors.NewTransportError("image host refused the request",
			fmt.Errorf("client error: status code %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, true, apperrors.NewTransportError("image host is unavailable",
			fmt.Errorf("server error: status code %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, false, apperrors.NewTransportError("unexpected response from image host",
			fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	data, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, false, err
	}
	return &FetchedImage{Data: data, ContentType: resp.Header.Get("Content-Type")}, false, nil
}

// readLimited reads at most maxBytes; larger bodies are rejected rather than truncated.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, apperrors.NewTransportError("failed to read image", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperrors.NewValidationError(fmt.Sprintf("image exceeds %d bytes", maxBytes), nil)
	}
	return data, nil
}
