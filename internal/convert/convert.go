// Package convert turns a web page into LLM-rewritten Markdown.
package convert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/sanitize"
	"github.com/marcus302/aanvraagapp/internal/utils"
)

const (
	htmlPlaceholder     = "{{HTML_CONTENT}}"
	defaultMaxLogLength = 200
)

var (
	//go:embed listing_prompt.md
	listingPrompt string
	//go:embed client_prompt.md
	clientPrompt string
)

// Fetcher downloads a page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// EmptyContentError is returned when a page has nothing worth converting.
type EmptyContentError struct {
	URL    string
	Reason string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("empty content at %s: %s", e.URL, e.Reason)
}

// Result holds every representation of a converted page.
type Result struct {
	RawHTML       string
	SanitizedHTML string
	Markdown      string
}

type Converter struct {
	fetcher   Fetcher
	backend   ai.Backend
	text      *bluemonday.Policy
	logger    *zap.Logger
	maxLogLen int
}

func New(fetcher Fetcher, backend ai.Backend, logger *zap.Logger, maxLogLength int) *Converter {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Converter{
		fetcher:   fetcher,
		backend:   backend,
		text:      bluemonday.StrictPolicy(),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Convert fetches url, sanitizes it and asks the backend to rewrite it as
// Markdown using the prompt for the owner kind.
func (c *Converter) Convert(ctx context.Context, url string, kind domain.OwnerKind) (*Result, error) {
	template, err := promptFor(kind)
	if err != nil {
		return nil, err
	}

	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &EmptyContentError{URL: url, Reason: "page body is blank"}
	}

	cleaned := sanitize.Sanitize(raw)
	if c.visibleText(cleaned) == "" {
		return nil, &EmptyContentError{URL: url, Reason: "no visible text after sanitizing"}
	}

	c.logger.Debug("sanitized page",
		zap.String("url", url),
		zap.Int("raw_length", len(raw)),
		zap.Int("sanitized_length", len(cleaned)),
	)

	prompt := strings.ReplaceAll(template, htmlPlaceholder, cleaned)
	md, err := c.backend.Generate(ctx, prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s as markdown: %w", url, err)
	}
	md = stripFence(md)
	if md == "" {
		return nil, errors.New("backend returned empty markdown for " + url)
	}

	c.logger.Debug("converted page to markdown",
		zap.String("url", url),
		zap.Int("markdown_length", utf8.RuneCountInString(md)),
		zap.String("markdown_preview", utils.TruncateForLog(md, c.maxLogLen)),
	)

	return &Result{RawHTML: raw, SanitizedHTML: cleaned, Markdown: md}, nil
}

func (c *Converter) visibleText(sanitized string) string {
	return strings.TrimSpace(html.UnescapeString(c.text.Sanitize(sanitized)))
}

func promptFor(kind domain.OwnerKind) (string, error) {
	switch kind {
	case domain.OwnerListing:
		return listingPrompt, nil
	case domain.OwnerClient:
		return clientPrompt, nil
	default:
		return "", fmt.Errorf("no conversion prompt for owner kind %q", kind)
	}
}

// stripFence removes a ```markdown fence some models wrap their answer in.
func stripFence(md string) string {
	md = strings.TrimSpace(md)
	if !strings.HasPrefix(md, "```") {
		return md
	}
	md = strings.TrimPrefix(md, "```markdown")
	md = strings.TrimPrefix(md, "```md")
	md = strings.TrimPrefix(md, "```")
	if idx := strings.LastIndex(md, "```"); idx != -1 {
		md = md[:idx]
	}
	return strings.TrimSpace(md)
}
