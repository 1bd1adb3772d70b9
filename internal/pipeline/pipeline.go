// Package pipeline runs the per-owner ingestion stages and the read paths
// built on top of them.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/convert"
	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/extract"
	"github.com/marcus302/aanvraagapp/internal/matching"
	"github.com/marcus302/aanvraagapp/internal/store"
)

const (
	StageConvert = "convert"
	StageExtract = "extract_fields"
	StageChunk   = "chunk_and_embed"
	StageSearch  = "search"
	StageMatch   = "score_match"

	DefaultEmbedBatchSize = 16
	DefaultSearchLimit    = 5
	DefaultWorkers        = 2
)

// Repository is the persistence surface the pipeline needs.
type Repository interface {
	GetListing(ctx context.Context, id int64) (*domain.Listing, error)
	GetListingByURL(ctx context.Context, website string) (*domain.Listing, error)
	ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
	UpdateListingFields(ctx context.Context, l *domain.Listing) error
	AttachLabels(ctx context.Context, listingID int64, names []string) ([]domain.TargetAudienceLabel, error)
	GetProviderByName(ctx context.Context, name string) (*domain.Provider, error)

	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	GetClientByName(ctx context.Context, name string) (*domain.Client, error)
	ListClients(ctx context.Context, unparsed bool) ([]domain.Client, error)
	UpdateClientFields(ctx context.Context, c *domain.Client) error

	WebpagesFor(ctx context.Context, owner domain.Owner) ([]domain.Webpage, error)
	GetWebpage(ctx context.Context, id int64) (*domain.Webpage, error)
	InsertWebpage(ctx context.Context, w *domain.Webpage) error
	InsertChunks(ctx context.Context, webpageID int64, chunks []domain.Chunk) error
	ChunksFor(ctx context.Context, webpageID int64) ([]domain.Chunk, error)
	SearchChunks(ctx context.Context, scope domain.Scope, query []float32, limit int) ([]domain.SearchResult, error)
}

// Store is a Repository that can group writes in one transaction.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

type pgStore struct {
	*store.Store
}

// FromStore adapts a Postgres store to the pipeline.
func FromStore(s *store.Store) Store {
	return pgStore{Store: s}
}

func (s pgStore) InTx(ctx context.Context, fn func(Repository) error) error {
	return s.Store.InTx(ctx, func(r *store.Repo) error {
		return fn(r)
	})
}

type pageConverter interface {
	Convert(ctx context.Context, url string, kind domain.OwnerKind) (*convert.Result, error)
}

type fieldExtractor interface {
	Listing(ctx context.Context, md string) (*extract.ListingFields, error)
	Client(ctx context.Context, md string) (*extract.ClientFields, error)
}

type splitter interface {
	Split(md string) []string
}

type embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type matchScorer interface {
	Score(ctx context.Context, client matching.ClientProfile, listing matching.ListingProfile) (*matching.MatchResult, error)
}

type Config struct {
	EmbedBatchSize   int
	MatchConcurrency int
	Workers          int
}

// Deps are the collaborators of a Pipeline. All of them are required.
type Deps struct {
	Store     Store
	Converter pageConverter
	Extractor fieldExtractor
	Chunker   splitter
	Embedder  embedder
	Scorer    matchScorer
	Logger    *zap.Logger
}

type Pipeline struct {
	store     Store
	converter pageConverter
	extractor fieldExtractor
	chunker   splitter
	embedder  embedder
	scorer    matchScorer
	cfg       Config
	logger    *zap.Logger
}

func New(cfg Config, deps Deps) *Pipeline {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		store:     deps.Store,
		converter: deps.Converter,
		extractor: deps.Extractor,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		scorer:    deps.Scorer,
		cfg:       cfg,
		logger:    logger,
	}
}

// website resolves the URL an owner's webpage is fetched from.
func (p *Pipeline) website(ctx context.Context, owner domain.Owner) (string, error) {
	switch owner.Kind {
	case domain.OwnerListing:
		l, err := p.store.GetListing(ctx, owner.ID)
		if err != nil {
			return "", err
		}
		return l.Website, nil
	case domain.OwnerClient:
		c, err := p.store.GetClient(ctx, owner.ID)
		if err != nil {
			return "", err
		}
		return c.Website, nil
	default:
		return "", fmt.Errorf("invalid owner kind %q", owner.Kind)
	}
}

// PendingOwners returns the owners of kind that still need a webpage, or every
// owner of kind when all is set.
func (p *Pipeline) PendingOwners(ctx context.Context, kind domain.OwnerKind, all bool) ([]domain.Owner, error) {
	var owners []domain.Owner
	switch kind {
	case domain.OwnerListing:
		listings, err := p.store.ListListings(ctx, domain.ListingFilter{Unparsed: !all})
		if err != nil {
			return nil, err
		}
		for _, l := range listings {
			owners = append(owners, domain.ListingOwner(l.ID))
		}
	case domain.OwnerClient:
		clients, err := p.store.ListClients(ctx, !all)
		if err != nil {
			return nil, err
		}
		for _, c := range clients {
			owners = append(owners, domain.ClientOwner(c.ID))
		}
	default:
		return nil, fmt.Errorf("invalid owner kind %q", kind)
	}
	return owners, nil
}
