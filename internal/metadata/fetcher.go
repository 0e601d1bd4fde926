package metadata

import (
	"context"
	"net/url"
	"strings"
)

// Metadata is the page information extracted for a saved link.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// Fetcher defines the interface for fetching metadata from a URL.
type Fetcher interface {
	// Fetch retrieves page metadata for the given URL. Implementations
	// bound the call with their own timeout; callers treat failure as
	// recoverable and fall back to FallbackTitle.
	Fetch(ctx context.Context, pageURL string) (Metadata, error)
}

// FallbackTitle derives a usable title from the URL itself, for when the
// fetch fails. Returns the hostname, or the raw input if it does not parse.
func FallbackTitle(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return pageURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
