package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "go-fieldfix/internal/errors"
)

// APIKeyEnv is the environment variable holding the inference service credential.
const APIKeyEnv = "GOOGLE_API_KEY"

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	InferenceTimeout   time.Duration
	ImageFetchTimeout  time.Duration
	MaxRequestBodySize int64

	// Inference service
	GoogleAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	InferenceMaxRetries int

	// Image normalization
	JPEGQuality       int
	MaxImageDimension int
	MaxImagePixels    int

	// Optional text hints
	OCREnabled  bool
	OCRLanguage string

	// Optional Azure Blob image source
	AzureStorageAccount string
	AzureStorageKey     string

	AllowPrivateImageHosts bool
	LogLevel               string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether blob URLs can be served from Azure storage.
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadFromEnv reads the configuration from the process environment. A missing
// credential or an invalid value yields a config error; the service must not
// start in that case.
func LoadFromEnv() (*Config, error) {
	env := &envReader{}

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     env.durationVar("REQUEST_TIMEOUT", 90*time.Second),
		InferenceTimeout:   env.durationVar("INFERENCE_TIMEOUT", 60*time.Second),
		ImageFetchTimeout:  env.durationVar("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		MaxRequestBodySize: env.int64Var("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		GoogleAPIKey:        strings.TrimSpace(os.Getenv(APIKeyEnv)),
		GeminiModel:         getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
		GeminiBaseURL:       strings.TrimRight(getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
		InferenceMaxRetries: env.intVar("INFERENCE_MAX_RETRIES", 2),

		JPEGQuality:       env.intVar("JPEG_QUALITY", 85),
		MaxImageDimension: env.intVar("MAX_IMAGE_DIMENSION", 2048),
		MaxImagePixels:    env.intVar("MAX_IMAGE_PIXELS", 50_000_000),

		OCREnabled:  env.boolVar("OCR_ENABLED", false),
		OCRLanguage: getEnvOrDefault("OCR_LANGUAGE", "eng"),

		AzureStorageAccount: strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureStorageKey:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),

		AllowPrivateImageHosts: env.boolVar("ALLOW_PRIVATE_IMAGE_HOSTS", false),
		LogLevel:               strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
	}

	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and returns a config error describing the first problem.
func (c *Config) Validate() error {
	if c.GoogleAPIKey == "" {
		return apperrors.NewConfigError(fmt.Sprintf("%s is not set", APIKeyEnv), nil)
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return apperrors.NewConfigError(fmt.Sprintf("invalid PORT: %q", c.Port), err)
	}
	if c.MaxRequestBodySize <= 0 {
		return apperrors.NewConfigError(fmt.Sprintf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize), nil)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.InferenceTimeout <= 0 {
		return apperrors.NewConfigError(fmt.Sprintf("timeouts must be > 0 (got request=%s, fetch=%s, inference=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.InferenceTimeout), nil)
	}
	if c.GeminiModel == "" {
		return apperrors.NewConfigError("GEMINI_MODEL must not be empty", nil)
	}
	if c.InferenceMaxRetries < 0 {
		return apperrors.NewConfigError(fmt.Sprintf("INFERENCE_MAX_RETRIES must be >= 0 (got %d)", c.InferenceMaxRetries), nil)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return apperrors.NewConfigError(fmt.Sprintf("JPEG_QUALITY must be within 1..100 (got %d)", c.JPEGQuality), nil)
	}
	if c.MaxImageDimension <= 0 || c.MaxImagePixels <= 0 {
		return apperrors.NewConfigError(fmt.Sprintf("image bounds must be > 0 (got dimension=%d, pixels=%d)",
			c.MaxImageDimension, c.MaxImagePixels), nil)
	}
	if (c.AzureStorageAccount == "") != (c.AzureStorageKey == "") {
		return apperrors.NewConfigError("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together", nil)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed variables and keeps the first unparseable one.
// Unset or blank variables take the default.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = apperrors.NewConfigError(fmt.Sprintf("invalid %s: %q", key, value), err)
	}
}

func (r *envReader) durationVar(key string, defaultValue time.Duration) time.Duration {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return duration
}

func (r *envReader) int64Var(key string, defaultValue int64) int64 {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return intValue
}

func (r *envReader) intVar(key string, defaultValue int) int {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return intValue
}

func (r *envReader) boolVar(key string, defaultValue bool) bool {
	value, ok := r.lookup(key)
	if !ok {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, value, err)
		return defaultValue
	}
	return boolValue
}
