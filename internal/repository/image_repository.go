package repository

import (
	"context"

	apperrors "go-fieldfix/internal/errors"
	"go-fieldfix/internal/storage"
	"go-fieldfix/pkg/validation"
)

// ImageRepository resolves image URLs to raw image bytes
type ImageRepository interface {
	// FetchImage validates imageURL and downloads it from the matching source
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// accountScoped is implemented by blob fetchers bound to a single storage account
type accountScoped interface {
	ServesURL(imageURL string) bool
}

// imageRepository routes Azure Blob URLs of the configured account to the blob
// fetcher and everything else to HTTP
type imageRepository struct {
	http      storage.ImageFetcher
	blob      storage.ImageFetcher
	validator *validation.URLValidator
}

// NewImageRepository creates an image repository. blob may be nil when Azure is not configured.
func NewImageRepository(http, blob storage.ImageFetcher, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &imageRepository{
		http:      http,
		blob:      blob,
		validator: validator,
	}
}

// FetchImage retrieves an image from a URL
func (r *imageRepository) FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	fetcher := r.http
	if r.servedByBlob(imageURL) {
		fetcher = r.blob
	}
	if fetcher == nil {
		return nil, apperrors.NewInternalError("no image source configured", ErrRepositoryUnavailable)
	}
	return fetcher.FetchImage(ctx, imageURL)
}

func (r *imageRepository) servedByBlob(imageURL string) bool {
	if r.blob == nil || !validation.IsAzureBlobURL(imageURL) {
		return false
	}
	if scoped, ok := r.blob.(accountScoped); ok {
		return scoped.ServesURL(imageURL)
	}
	return true
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *imageRepository) ValidateImageURL(imageURL string) error {
	if imageURL == "" {
		return apperrors.NewValidationError("image URL is required", ErrInvalidImageURL)
	}
	return r.validator.ValidateImageURL(imageURL)
}
