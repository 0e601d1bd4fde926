package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// HTTPFetcher implements Fetcher by downloading the page and parsing its
// head tags. It is the default strategy; it cannot see script-rendered
// content, which is what BrowserFetcher is for.
type HTTPFetcher struct {
	client *http.Client
	log    logrus.FieldLogger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTP-based metadata fetcher. Each fetch is
// bounded by the given timeout.
func NewHTTPFetcher(timeout time.Duration, logger logrus.FieldLogger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		log:    logger.WithField("component", "metadata_http"),
	}
}

// Fetch downloads the page and extracts title, description, and Open Graph
// fields.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (Metadata, error) {
	log := f.log.WithField("url", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", "linkmind/1.0 (+https://linkmind.app)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Metadata fetch failed")
		return Metadata{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.WithField("status", resp.StatusCode).Warn("Metadata fetch returned error status")
		return Metadata{}, fmt.Errorf("fetch %s: unexpected status %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	md := extract(doc)
	if md.Domain == "" {
		if u, err := url.Parse(pageURL); err == nil {
			md.Domain = u.Hostname()
		}
	}

	log.WithField("title", md.Title).Debug("Metadata extracted")
	return md, nil
}

func extract(doc *goquery.Document) Metadata {
	var md Metadata

	md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if og := metaContent(doc, `meta[property="og:title"]`); og != "" {
		md.Title = og
	}

	md.Description = metaContent(doc, `meta[name="description"]`)
	if md.Description == "" {
		md.Description = metaContent(doc, `meta[property="og:description"]`)
	}

	md.ImageURL = metaContent(doc, `meta[property="og:image"]`)
	md.SiteName = metaContent(doc, `meta[property="og:site_name"]`)

	if ogURL := metaContent(doc, `meta[property="og:url"]`); ogURL != "" {
		if u, err := url.Parse(ogURL); err == nil {
			md.Domain = u.Hostname()
		}
	}

	return md
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
