package factory

import (
	"fmt"

	"go-fieldfix/internal/config"
	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/ocr"
	"go-fieldfix/internal/storage"
	"go-fieldfix/pkg/validation"
)

// StorageType represents different types of image sources
type StorageType string

const (
	// HTTPStorage for images on public HTTP(S) hosts
	HTTPStorage StorageType = "http"
	// AzureStorage for images in Azure Blob Storage
	AzureStorage StorageType = "azure"
)

// ExtractorType represents different text extractors
type ExtractorType string

const (
	// NoExtractor disables text hints
	NoExtractor ExtractorType = "none"
	// TesseractExtractor reads text with Tesseract
	TesseractExtractor ExtractorType = "tesseract"
)

// StorageFactory creates image sources
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

// ExtractorFactory creates text extractors
type ExtractorFactory interface {
	CreateExtractor(extractorType ExtractorType) (ocr.TextExtractor, error)
}

type storageFactory struct {
	cfg *config.Config
}

// NewStorageFactory creates a storage factory bound to cfg
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{cfg: cfg}
}

// CreateStorage creates an image source of the given type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		checker := validation.NewURLValidatorWithOptions(validation.URLValidatorOptions{
			AllowPrivate: f.cfg.AllowPrivateImageHosts,
		})
		return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout, f.cfg.MaxRequestBodySize, checker), nil
	case AzureStorage:
		if !f.cfg.AzureEnabled() {
			return nil, apperrors.NewConfigError("Azure storage requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY", nil)
		}
		return storage.NewAzureStorage(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey, f.cfg.MaxRequestBodySize)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

type extractorFactory struct {
	language string
}

// NewExtractorFactory creates an extractor factory for the given OCR language
func NewExtractorFactory(language string) ExtractorFactory {
	return &extractorFactory{language: language}
}

// CreateExtractor creates a text extractor of the given type
func (f *extractorFactory) CreateExtractor(extractorType ExtractorType) (ocr.TextExtractor, error) {
	switch extractorType {
	case NoExtractor:
		return ocr.NoopExtractor{}, nil
	case TesseractExtractor:
		return ocr.NewTesseractExtractor(f.language)
	default:
		return nil, fmt.Errorf("unsupported extractor type: %s", extractorType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	StorageFactory   StorageFactory
	ExtractorFactory ExtractorFactory
}

// NewComponentFactory creates a component factory from the configuration
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		StorageFactory:   NewStorageFactory(cfg),
		ExtractorFactory: NewExtractorFactory(cfg.OCRLanguage),
	}
}
