package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/filtering"
	"github.com/marcus302/aanvraagapp/internal/matching"
)

// Search embeds queryText and returns the closest chunks within scope, most
// similar first.
func (p *Pipeline) Search(ctx context.Context, scope domain.Scope, queryText string, limit int) ([]domain.SearchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryText) == "" {
		return nil, errors.New("search query is empty")
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := p.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := p.store.SearchChunks(ctx, scope, vector, limit)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("search completed",
		zap.String("scope", scope.String()),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// ScoreMatch scores one client against one listing.
func (p *Pipeline) ScoreMatch(ctx context.Context, clientID, listingID int64) (*matching.MatchResult, error) {
	client, err := p.clientProfile(ctx, clientID)
	if err != nil {
		return nil, err
	}
	listing, err := p.listingProfile(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return p.scorer.Score(ctx, *client, *listing)
}

func (p *Pipeline) clientProfile(ctx context.Context, id int64) (*matching.ClientProfile, error) {
	client, err := p.store.GetClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load client %d: %w", id, err)
	}
	pages, err := p.store.WebpagesFor(ctx, domain.ClientOwner(id))
	if err != nil {
		return nil, err
	}
	return &matching.ClientProfile{Client: *client, Webpages: pages}, nil
}

func (p *Pipeline) listingProfile(ctx context.Context, id int64) (*matching.ListingProfile, error) {
	listing, err := p.store.GetListing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load listing %d: %w", id, err)
	}
	pages, err := p.store.WebpagesFor(ctx, domain.ListingOwner(id))
	if err != nil {
		return nil, err
	}
	return &matching.ListingProfile{Listing: *listing, Webpages: pages}, nil
}

// SuitableOptions narrow the candidate listings before they are scored.
type SuitableOptions struct {
	OnlyOpen         bool
	Instruments      []string
	ExcludeProviders []string
	ExcludeFile      string
	MinimumQuality   matching.Quality
}

type Suitable struct {
	Listings []*filtering.Candidate
	Filters  []filtering.Status
}

// SuitableListings filters every listing for the client and scores the
// survivors. Listings scored BAD are dropped.
func (p *Pipeline) SuitableListings(ctx context.Context, clientID int64, opts SuitableOptions) (*Suitable, error) {
	client, err := p.clientProfile(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(client.Webpages) == 0 {
		return nil, &domain.PreconditionViolation{
			Stage:  StageMatch,
			Owner:  domain.ClientOwner(clientID),
			Reason: "client has no parsed webpage",
		}
	}

	listings, err := p.store.ListListings(ctx, domain.ListingFilter{})
	if err != nil {
		return nil, err
	}

	providerIDs, err := p.providerIDs(ctx, opts.ExcludeProviders)
	if err != nil {
		return nil, err
	}

	log := p.stageLogger(StageMatch, domain.ClientOwner(clientID))

	match := func(ctx context.Context, l domain.Listing) (*matching.MatchResult, error) {
		pages, err := p.store.WebpagesFor(ctx, domain.ListingOwner(l.ID))
		if err != nil {
			return nil, err
		}
		return p.scorer.Score(ctx, *client, matching.ListingProfile{Listing: l, Webpages: pages})
	}

	steps := []filtering.Filter{
		filtering.NewOpen(opts.OnlyOpen),
		filtering.NewInstruments(opts.Instruments),
		filtering.NewTargetAudience(client.Client.BusinessIdentity),
		filtering.NewExcludedProviders(providerIDs),
		filtering.NewExcludeFile(opts.ExcludeFile),
		filtering.NewAIMatch(
			&filtering.AIMatchConfig{
				Enabled:        true,
				Concurrency:    p.cfg.MatchConcurrency,
				MinimumQuality: opts.MinimumQuality,
				ExcludeFile:    opts.ExcludeFile,
			},
			&filtering.AIMatchDeps{Logger: log, Match: match},
		),
	}

	survivors, err := filtering.Run(ctx, log, steps, filtering.NewCandidates(listings))
	if err != nil {
		return nil, err
	}

	return &Suitable{Listings: survivors.Items, Filters: filtering.Describe(steps)}, nil
}

func (p *Pipeline) providerIDs(ctx context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		provider, err := p.store.GetProviderByName(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("excluded provider does not exist", zap.String("provider", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, provider.ID)
	}
	return ids, nil
}
