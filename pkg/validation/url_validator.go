package validation

import (
	"net"
	"net/url"
	"strings"

	apperrors "go-fieldfix/internal/errors"
)

// AzureBlobHostSuffix is the host suffix of Azure Blob Storage endpoints
const AzureBlobHostSuffix = ".blob.core.windows.net"

// URLValidatorOptions configures a URLValidator
type URLValidatorOptions struct {
	// Schemes allowed; defaults to http and https
	Schemes []string
	// Hosts allowed, either exact ("example.com") or suffix (".example.com"); empty means all hosts
	Hosts []string
	// AllowPrivate permits loopback, private and link-local addresses
	AllowPrivate bool
}

// URLValidator checks image URLs submitted for analysis before anything is downloaded
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
	allowPrivate   bool
}

// NewURLValidator creates a URL validator with default settings
func NewURLValidator() *URLValidator {
	return NewURLValidatorWithOptions(URLValidatorOptions{})
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(opts URLValidatorOptions) *URLValidator {
	schemes := opts.Schemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	hosts := make([]string, 0, len(opts.Hosts))
	for _, h := range opts.Hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
		allowPrivate:   opts.AllowPrivate,
	}
}

// ValidateImageURL validates if the provided URL is acceptable for image download
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	host := strings.ToLower(parsedURL.Hostname())
	if host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if parsedURL.User != nil {
		return apperrors.NewValidationError("URL must not contain credentials", nil)
	}

	if !v.allowPrivate && isPrivateHost(host) {
		return apperrors.NewValidationError("URL host is not publicly routable", nil)
	}

	if !v.isHostAllowed(host) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// IsAzureBlobURL reports whether imageURL points at Azure Blob Storage
func IsAzureBlobURL(imageURL string) bool {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(parsedURL.Hostname()), AzureBlobHostSuffix)
}

// isSchemeAllowed checks if the URL scheme is in the allowed list
func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isHostAllowed checks the host against exact and suffix entries.
// Returns true if no host restrictions are set.
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}

// isPrivateHost only inspects the literal host; names other than localhost are not resolved.
func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
