package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "go-fieldfix/internal/errors"
)

// AzureBlobFetcher downloads images from an Azure Storage account using a shared key.
type AzureBlobFetcher struct {
	client   *azblob.Client
	account  string
	maxBytes int64
}

// NewAzureStorage creates a blob fetcher for accountName.
func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid Azure storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		ServiceURL(accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create Azure storage client", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}

	return &AzureBlobFetcher{client: client, account: accountName, maxBytes: maxBytes}, nil
}

// ServiceURL returns the blob endpoint of an account.
func ServiceURL(accountName string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
}

// ServesURL reports whether blobURL lives in the account this fetcher holds credentials for.
func (s *AzureBlobFetcher) ServesURL(blobURL string) bool {
	u, err := url.Parse(blobURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, accountHost(s.account))
}

func accountHost(accountName string) string {
	return strings.TrimSuffix(strings.TrimPrefix(ServiceURL(accountName), "https://"), "/")
}

// FetchImage downloads the blob addressed by blobURL, e.g.
// https://<account>.blob.core.windows.net/<container>/<path/to/blob>.
// Blobs of other accounts are rejected; the shared key only covers this one.
func (s *AzureBlobFetcher) FetchImage(ctx context.Context, blobURL string) (*FetchedImage, error) {
	parts, err := azblob.ParseURL(blobURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}
	if !strings.EqualFold(parts.Host, accountHost(s.account)) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("blob URL is not in storage account %q", s.account), nil)
	}
	if parts.ContainerName == "" || parts.BlobName == "" {
		return nil, apperrors.NewValidationError("blob URL must name a container and a blob", nil)
	}

	resp, err := s.client.DownloadStream(ctx, parts.ContainerName, parts.BlobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError("image not found", err)
		}
		if bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure) {
			return nil, apperrors.NewConfigError("Azure storage rejected the credentials", err)
		}
		return nil, apperrors.NewTransportError("blob download failed", err)
	}

	body := resp.Body
	defer body.Close()

	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return nil, err
	}

	contentType := ""
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}
	return &FetchedImage{Data: data, ContentType: contentType}, nil
}
