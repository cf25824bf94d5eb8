package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/pkg/validation"
)

// Valid minimal PNG data for a 1x1 transparent pixel
var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

func newTestFetcher(maxBytes int64) *HTTPImageFetcher {
	f := NewHTTPImageFetcher(5*time.Second, maxBytes, nil)
	f.retryDelay = time.Millisecond
	return f
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorType     apperrors.ErrorType
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "404 - not found, no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorType:     apperrors.ErrorTypeNotFound,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 403},
			expectRetries: 2,
			expectError:   true,
			errorType:     apperrors.ErrorTypeTransport,
			errorContains: "client error: status code 403",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorType:     apperrors.ErrorTypeTransport,
			errorContains: "server error: status code 503",
		},
		{
			name:          "400 - stop on first 4xx",
			responses:     []int{400},
			expectRetries: 1,
			expectError:   true,
			errorType:     apperrors.ErrorTypeTransport,
			errorContains: "client error: status code 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0

			// Create test server that returns responses in sequence
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requestCount < len(tt.responses) {
					statusCode := tt.responses[requestCount]
					requestCount++

					if statusCode == 200 {
						w.Header().Set("Content-Type", "image/png")
						w.Write(pngData)
					} else {
						w.WriteHeader(statusCode)
					}
				} else {
					w.WriteHeader(http.StatusInternalServerError)
				}
			}))
			defer server.Close()

			img, err := newTestFetcher(0).FetchImage(context.Background(), server.URL)

			if requestCount != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, requestCount)
			}

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !apperrors.IsType(err, tt.errorType) {
					t.Errorf("Expected %s error, got %v", tt.errorType, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if len(img.Data) != len(pngData) {
				t.Errorf("Expected %d bytes, got %d", len(pngData), len(img.Data))
			}
			if img.ContentType != "image/png" {
				t.Errorf("Expected image/png content type, got %q", img.ContentType)
			}
		})
	}
}

func TestHTTPImageFetcher_RejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	_, err := newTestFetcher(1024).FetchImage(context.Background(), server.URL)
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for oversized body, got %v", err)
	}
}

func TestHTTPImageFetcher_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher(0).FetchImage(ctx, server.URL)
	if !apperrors.IsType(err, apperrors.ErrorTypeTimeout) {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestHTTPImageFetcher_TooManyRedirects(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/again", http.StatusFound)
	}))
	defer server.Close()

	_, err := newTestFetcher(0).FetchImage(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected redirect error")
	}
	if !strings.Contains(err.Error(), "too many redirects") {
		t.Errorf("Expected redirect limit error, got %v", err)
	}
}

func TestHTTPImageFetcher_RejectsRedirectToPrivateHost(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"metadata endpoint", "http://169.254.169.254/latest/meta-data/"},
		{"private network", "http://10.0.0.7/field.png"},
		{"localhost", "http://localhost:8080/field.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&requests, 1)
				http.Redirect(w, r, tt.target, http.StatusFound)
			}))
			defer server.Close()

			f := NewHTTPImageFetcher(5*time.Second, 0, validation.NewURLValidator())
			f.retryDelay = time.Millisecond

			_, err := f.FetchImage(context.Background(), server.URL)
			if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), "redirect target rejected") {
				t.Errorf("Expected redirect rejection, got %q", err.Error())
			}
			if got := atomic.LoadInt32(&requests); got != 1 {
				t.Errorf("Rejected redirects must not be retried, got %d requests", got)
			}
		})
	}
}

func TestHTTPImageFetcher_FollowsAllowedRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.png", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	checker := validation.NewURLValidatorWithOptions(validation.URLValidatorOptions{AllowPrivate: true})
	img, err := NewHTTPImageFetcher(5*time.Second, 0, checker).FetchImage(context.Background(), server.URL+"/old.png")
	if err != nil {
		t.Fatalf("Expected redirect to be followed, got %v", err)
	}
	if len(img.Data) != len(pngData) {
		t.Errorf("Expected %d bytes, got %d", len(pngData), len(img.Data))
	}
}

func TestServiceURL(t *testing.T) {
	if got := ServiceURL("fieldfix"); got != "https://fieldfix.blob.core.windows.net/" {
		t.Errorf("Unexpected service URL %s", got)
	}
}
