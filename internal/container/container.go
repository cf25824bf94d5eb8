package container

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"go-fieldfix/internal/config"
	"go-fieldfix/internal/factory"
	"go-fieldfix/internal/gateway"
	"go-fieldfix/internal/imaging"
	"go-fieldfix/internal/logger"
	"go-fieldfix/internal/observer"
	"go-fieldfix/internal/prompt"
	"go-fieldfix/internal/repository"
	"go-fieldfix/internal/service"
	"go-fieldfix/internal/storage"
	"go-fieldfix/internal/transport"
	"go-fieldfix/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	metrics         *observer.MetricsObserver
	analysisService service.AnalysisService
	handler         http.Handler
}

// NewContainer wires the application from cfg. An invalid configuration,
// including a missing inference credential, yields a config error.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Component("container")
	components := factory.NewComponentFactory(cfg)

	gw, err := gateway.NewGeminiGateway(gateway.Options{
		APIKey:     cfg.GoogleAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		Timeout:    cfg.InferenceTimeout,
		MaxRetries: cfg.InferenceMaxRetries,
	})
	if err != nil {
		return nil, err
	}

	imageRepository, err := newImageRepository(cfg, components.StorageFactory)
	if err != nil {
		return nil, err
	}

	extractorType := factory.NoExtractor
	if cfg.OCREnabled {
		extractorType = factory.TesseractExtractor
	}
	extractor, err := components.ExtractorFactory.CreateExtractor(extractorType)
	if err != nil {
		return nil, err
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher(logger.Logger)
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	analysisService := service.NewAnalysisService(service.Dependencies{
		Normalizer: imaging.NewNormalizer(imaging.Options{
			Quality:      cfg.JPEGQuality,
			MaxDimension: cfg.MaxImageDimension,
			MaxPixels:    cfg.MaxImagePixels,
		}),
		Builder:   prompt.NewBuilder(),
		Gateway:   gw,
		Images:    imageRepository,
		Extractor: extractor,
		Events:    events,
	})
	handler := transport.NewHandler(analysisService, metrics, cfg)

	log.WithFields(logrus.Fields{
		"model":         cfg.GeminiModel,
		"azure_enabled": cfg.AzureEnabled(),
		"ocr_enabled":   cfg.OCREnabled,
	}).Info("Container initialized")

	return &Container{
		config:          cfg,
		metrics:         metrics,
		analysisService: analysisService,
		handler:         handler,
	}, nil
}

func newImageRepository(cfg *config.Config, storages factory.StorageFactory) (repository.ImageRepository, error) {
	httpFetcher, err := storages.CreateStorage(factory.HTTPStorage)
	if err != nil {
		return nil, err
	}

	// blob stays a nil interface when Azure is not configured
	var blob storage.ImageFetcher
	if cfg.AzureEnabled() {
		if blob, err = storages.CreateStorage(factory.AzureStorage); err != nil {
			return nil, err
		}
	}

	validator := validation.NewURLValidatorWithOptions(validation.URLValidatorOptions{
		AllowPrivate: cfg.AllowPrivateImageHosts,
	})
	return repository.NewImageRepository(httpFetcher, blob, validator), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// AnalysisService returns the analysis pipeline
func (c *Container) AnalysisService() service.AnalysisService {
	return c.analysisService
}

// Metrics returns the metrics observer
func (c *Container) Metrics() *observer.MetricsObserver {
	return c.metrics
}
