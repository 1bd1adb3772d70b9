// Package rvo ingests the subsidy catalog of the Netherlands Enterprise Agency.
package rvo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/fetch"
	"github.com/marcus302/aanvraagapp/internal/provider"
	"github.com/marcus302/aanvraagapp/internal/utils"
)

const (
	ProviderName = "RVO"
	BaseURL      = "https://www.rvo.nl"
	apiPath      = "/api/v1/opendata/subsidies"

	MaxRetries        = 3
	DefaultRetryDelay = 10 * time.Second
	DefaultPageDelay  = 2 * time.Second

	contentType = "application/json"
	userAgent   = "aanvraagapp (+https://github.com/marcus302/aanvraagapp)"
)

func init() {
	provider.Register(ProviderName, func(logger *zap.Logger) provider.Workflow {
		return New(logger)
	})
}

// Subsidy is one catalog entry. Only the fields ingestion needs are decoded.
type Subsidy struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type Workflow struct {
	// BaseURL prefixes catalog paths to form listing websites.
	BaseURL    string
	APIURL     string
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	PageDelay  time.Duration
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		BaseURL: BaseURL,
		APIURL:  BaseURL + apiPath,
		HTTPClient: &http.Client{
			Timeout: fetch.DefaultTimeout,
		},
		MaxRetries: MaxRetries,
		RetryDelay: DefaultRetryDelay,
		PageDelay:  DefaultPageDelay,
		logger:     logger.With(zap.String("provider", ProviderName)),
	}
}

func (w *Workflow) Name() string { return ProviderName }

func (w *Workflow) Website() string { return w.BaseURL }

// Run walks the catalog page by page until an empty page. Transient failures
// retry the same page; the retry budget resets after every successful page.
func (w *Workflow) Run(ctx context.Context, providerID int64, repo provider.Repository) (*provider.Summary, error) {
	summary := &provider.Summary{}
	page := 0
	retries := 0

	for {
		subsidies, err := w.fetchPage(ctx, page)
		if err != nil {
			var fe *fetch.Error
			if !errors.As(err, &fe) || !fe.Temporary() {
				return summary, fmt.Errorf("fetch catalog page %d: %w", page, err)
			}

			retries++
			w.logger.Warn("catalog request failed",
				zap.Int("page", page),
				zap.Int("attempt", retries),
				zap.Int("max_retries", w.MaxRetries),
				zap.Error(err),
			)
			if retries >= w.MaxRetries {
				return summary, fmt.Errorf("fetch catalog page %d: giving up after %d attempts: %w", page, retries, err)
			}
			if err := utils.WaitFor(ctx, w.RetryDelay); err != nil {
				return summary, err
			}
			continue
		}
		retries = 0

		if len(subsidies) == 0 {
			w.logger.Info("catalog exhausted", zap.Int("page", page))
			return summary, nil
		}

		pageSummary := provider.Summary{Pages: 1}
		for _, s := range subsidies {
			outcome, err := w.createListing(ctx, repo, providerID, s)
			if err != nil {
				summary.Merge(pageSummary)
				return summary, err
			}
			pageSummary.Add(outcome)
		}
		summary.Merge(pageSummary)

		w.logger.Info("catalog page processed", append(pageSummary.Fields(), zap.Int("page", page))...)

		page++
		if err := utils.WaitFor(ctx, w.PageDelay); err != nil {
			return summary, err
		}
	}
}

func (w *Workflow) createListing(ctx context.Context, repo provider.Repository, providerID int64, s Subsidy) (provider.Outcome, error) {
	if s.URL == "" {
		w.logger.Error("catalog entry has no url", zap.String("title", s.Title))
		return provider.OutcomeFailed, nil
	}
	if !IsValidSubsidyURL(s.URL) {
		w.logger.Debug("skipping nested catalog url", zap.String("url", s.URL))
		return provider.OutcomeSkippedInvalidURL, nil
	}

	website := w.BaseURL + s.URL
	created, err := repo.CreateListingIfMissing(ctx, providerID, website)
	if err != nil {
		return "", fmt.Errorf("create listing %s: %w", website, err)
	}
	if !created {
		w.logger.Debug("listing already exists", zap.String("url", website))
		return provider.OutcomeAlreadyExists, nil
	}

	w.logger.Info("listing created", zap.String("url", website), zap.String("title", s.Title))
	return provider.OutcomeCreated, nil
}

// IsValidSubsidyURL accepts top-level subsidy paths such as
// /subsidies-financiering/eurostars and rejects their sub-pages.
func IsValidSubsidyURL(path string) bool {
	return path != "" && strings.Count(path, "/") == 2
}

func (w *Workflow) fetchPage(ctx context.Context, page int) ([]Subsidy, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	pageURL := w.APIURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", userAgent)

	w.logger.Debug("make request", zap.String("url", pageURL))
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return nil, &fetch.Error{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		w.logger.Debug("bad catalog response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, &fetch.Error{URL: pageURL, StatusCode: resp.StatusCode}
	}

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode catalog page %d: %w", page, err)
	}

	return decodeSubsidies(items)
}

func decodeSubsidies(items []map[string]any) ([]Subsidy, error) {
	var subsidies []Subsidy

	cfg := &mapstructure.DecoderConfig{
		Result:           &subsidies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode catalog entries: %w", err)
	}
	return subsidies, nil
}
