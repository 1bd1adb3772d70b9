package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// mainContentSelectors are tried in order; the first match wins over <body>.
var mainContentSelectors = []string{"article", "main", ".content", "#content"}

// Page is one crawled URL. Markdown is nil when the page could not be
// fetched or converted.
type Page struct {
	URL      string
	Markdown *string
}

type CrawlResult struct {
	BaseURL string
	Pages   []Page
}

// URLs returns the crawled page URLs in crawl order.
func (r *CrawlResult) URLs() []string {
	urls := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		urls[i] = p.URL
	}
	return urls
}

// Crawl discovers every page listed in the site's sitemaps and converts each
// to Markdown. Per-page failures are logged and leave a nil entry.
func (f *Fetcher) Crawl(ctx context.Context, baseURL string) (*CrawlResult, error) {
	base, err := baseOf(baseURL)
	if err != nil {
		return nil, err
	}

	logger := f.logger.With(zap.String("url", base.String()))
	logger.Info("crawling website")

	urls, err := f.sitemapPages(ctx, base.String())
	if err != nil {
		return nil, fmt.Errorf("collect sitemap urls: %w", err)
	}
	logger.Info("collected page urls", zap.Int("count", len(urls)))

	result := &CrawlResult{BaseURL: base.String(), Pages: make([]Page, 0, len(urls))}
	converted := 0
	for _, pageURL := range urls {
		if err := f.throttle(ctx); err != nil {
			return nil, err
		}

		page := Page{URL: pageURL}
		md, err := f.pageMarkdown(ctx, pageURL)
		if err != nil {
			logger.Warn("failed to extract page content", zap.String("page", pageURL), zap.Error(err))
		} else {
			page.Markdown = &md
			converted++
		}
		result.Pages = append(result.Pages, page)
	}

	logger.Info("crawl finished", zap.Int("pages", len(result.Pages)), zap.Int("converted", converted))
	return result, nil
}

func (f *Fetcher) pageMarkdown(ctx context.Context, pageURL string) (string, error) {
	body, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return ReadableMarkdown(ctx, body, pageURL)
}

// ReadableMarkdown picks the main content region of an HTML page and converts
// it to Markdown with links resolved against pageURL.
func ReadableMarkdown(ctx context.Context, body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	selection := doc.Find("body")
	for _, selector := range mainContentSelectors {
		if found := doc.Find(selector).First(); found.Length() > 0 {
			selection = found
			break
		}
	}
	if selection.Length() == 0 {
		return "", fmt.Errorf("no content in %s", pageURL)
	}

	md, err := htmltomarkdown.ConvertNode(selection.Get(0),
		converter.WithContext(ctx),
		converter.WithDomain(pageURL),
	)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	out := strings.TrimSpace(string(md))
	if out == "" {
		return "", fmt.Errorf("no content in %s", pageURL)
	}
	return out, nil
}
