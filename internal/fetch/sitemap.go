package fetch

import (
	"bytes"
	"context"
	"encoding/xml"
	"slices"
	"strings"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/utils"
)

var wellKnownSitemaps = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps.xml",
	"/sitemap1.xml",
}

// sitemapDocument covers both <urlset> and <sitemapindex>; only one of the
// slices is populated for a given file.
type sitemapDocument struct {
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// discoverSitemaps returns the sitemaps named in robots.txt followed by the
// well-known locations that exist, without duplicates. A missing robots.txt or
// sitemap is not an error; a cancelled ctx is.
func (f *Fetcher) discoverSitemaps(ctx context.Context, base string) ([]string, error) {
	var found []string

	robotsURL := base + "/robots.txt"
	resp, err := f.do(ctx, "GET", robotsURL)
	if err == nil {
		robots, rerr := robotstxt.FromResponse(resp)
		_ = resp.Body.Close()
		if rerr != nil {
			f.logger.Debug("ignoring unparsable robots.txt", zap.String("url", robotsURL), zap.Error(rerr))
		} else if robots != nil {
			found = append(found, robots.Sitemaps...)
		}
	}

	for _, location := range wellKnownSitemaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate := base + location
		if f.head(ctx, candidate) {
			found = append(found, candidate)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return utils.Dedupe(found), nil
}

// sitemapPages expands sitemap indexes breadth-first and returns every page URL.
func (f *Fetcher) sitemapPages(ctx context.Context, base string) ([]string, error) {
	queue, err := f.discoverSitemaps(ctx, base)
	if err != nil {
		return nil, err
	}
	f.logger.Info("found sitemaps", zap.String("url", base), zap.Int("count", len(queue)))

	visited := make(map[string]struct{})
	var pages []string

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]
		if _, ok := visited[current]; ok {
			continue
		}
		visited[current] = struct{}{}

		if err := f.throttle(ctx); err != nil {
			return nil, err
		}

		body, err := f.get(ctx, current)
		if err != nil {
			f.logger.Warn("failed to fetch sitemap", zap.String("url", current), zap.Error(err))
			continue
		}

		urls, nested, err := parseSitemap(body)
		if err != nil {
			f.logger.Warn("failed to parse sitemap", zap.String("url", current), zap.Error(err))
			continue
		}
		pages = append(pages, urls...)
		for _, n := range nested {
			if _, ok := visited[n]; !ok {
				queue = append(queue, n)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages = utils.Dedupe(pages)
	slices.Sort(pages)
	return pages, nil
}

func parseSitemap(body []byte) (pages, nested []string, err error) {
	var doc sitemapDocument
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, nil, err
	}
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			nested = append(nested, loc)
		}
	}
	return pages, nested, nil
}
