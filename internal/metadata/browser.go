package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// BrowserFetcher implements Fetcher with a headless browser, for pages that
// only render their metadata from scripts. A fresh browser is launched per
// fetch; simpler than pooling, and fetches are rare enough that it holds up.
type BrowserFetcher struct {
	timeout time.Duration
	log     logrus.FieldLogger
}

var _ Fetcher = (*BrowserFetcher)(nil)

// NewBrowserFetcher creates a browser-based metadata fetcher.
func NewBrowserFetcher(timeout time.Duration, logger logrus.FieldLogger) *BrowserFetcher {
	return &BrowserFetcher{
		timeout: timeout,
		log:     logger.WithField("component", "metadata_browser"),
	}
}

// Fetch renders the page in a headless browser and extracts its metadata.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (md Metadata, err error) {
	log := f.log.WithField("url", pageURL)
	log.Debug("Fetching metadata via browser")

	path, exists := launcher.LookPath()
	if !exists {
		return Metadata{}, errors.New("browser executable not found")
	}
	u := launcher.New().Bin(path).MustLaunch()
	browser := rod.New().ControlURL(u)
	if err = browser.Connect(); err != nil {
		return Metadata{}, fmt.Errorf("connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close browser: %w", closeErr)
		}
	}()

	var page *rod.Page
	page, err = browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return Metadata{}, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close page: %w", closeErr)
		}
	}()

	pageCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	page = page.Context(pageCtx)

	if err = page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Browser fetch timed out")
			return Metadata{}, fmt.Errorf("fetch %s: %w", pageURL, pageCtx.Err())
		}
		return Metadata{}, fmt.Errorf("wait for page load: %w", err)
	}

	md.Title = f.elementText(page, "title")
	md.Description = f.metaAttr(page, `meta[name="description"]`)
	if md.Description == "" {
		md.Description = f.metaAttr(page, `meta[property="og:description"]`)
	}
	md.ImageURL = f.metaAttr(page, `meta[property="og:image"]`)
	md.SiteName = f.metaAttr(page, `meta[property="og:site_name"]`)
	if parsed, perr := url.Parse(pageURL); perr == nil {
		md.Domain = parsed.Hostname()
	}

	log.WithField("title", md.Title).Debug("Browser metadata extracted")
	return md, nil
}

func (f *BrowserFetcher) elementText(page *rod.Page, selector string) string {
	el, err := page.Element(selector)
	if err != nil {
		return ""
	}
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (f *BrowserFetcher) metaAttr(page *rod.Page, selector string) string {
	el, err := page.Element(selector)
	if err != nil {
		return ""
	}
	content, err := el.Attribute("content")
	if err != nil || content == nil {
		return ""
	}
	return strings.TrimSpace(*content)
}
