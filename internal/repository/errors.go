package repository

import "errors"

var (
	// ErrInvalidImageURL indicates an invalid image URL
	ErrInvalidImageURL = errors.New("invalid image URL")

	// ErrRepositoryUnavailable indicates no source is configured for the URL
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
