package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/marcus302/aanvraagapp/internal/convert"
	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/extract"
	"github.com/marcus302/aanvraagapp/internal/matching"
)

type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	providers map[string]*domain.Provider
	listings  map[int64]*domain.Listing
	clients   map[int64]*domain.Client
	webpages  []domain.Webpage
	chunks    map[int64][]domain.Chunk

	search    []domain.SearchResult
	lastScope domain.Scope
	lastQuery []float32
	lastLimit int
	txErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		providers: map[string]*domain.Provider{},
		listings:  map[int64]*domain.Listing{},
		clients:   map[int64]*domain.Client{},
		chunks:    map[int64][]domain.Chunk{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProvider(name string) *domain.Provider {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &domain.Provider{ID: f.id(), Name: name}
	f.providers[name] = p
	return p
}

func (f *fakeStore) addListing(l domain.Listing) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = f.id()
	f.listings[l.ID] = &l
	return l.ID
}

func (f *fakeStore) addClient(c domain.Client) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.clients[c.ID] = &c
	return c.ID
}

func (f *fakeStore) addWebpage(owner domain.Owner, md string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.webpages = append(f.webpages, domain.Webpage{ID: id, Owner: owner, URL: "https://example.com", MarkdownContent: md})
	return id
}

func (f *fakeStore) GetListing(_ context.Context, id int64) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) GetListingByURL(_ context.Context, website string) (*domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.listings {
		if l.Website == website {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ListListings(_ context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Listing
	for id := int64(1); id <= f.nextID; id++ {
		l, ok := f.listings[id]
		if !ok {
			continue
		}
		if filter.Unparsed && f.hasWebpage(domain.ListingOwner(id)) {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) UpdateListingFields(_ context.Context, l *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.listings[l.ID]
	if !ok {
		return domain.ErrNotFound
	}
	labels := stored.Labels
	cp := *l
	cp.Labels = labels
	f.listings[l.ID] = &cp
	return nil
}

func (f *fakeStore) AttachLabels(_ context.Context, listingID int64, names []string) ([]domain.TargetAudienceLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.listings[listingID]
	var labels []domain.TargetAudienceLabel
	for i, name := range names {
		l.Labels = append(l.Labels, name)
		labels = append(labels, domain.TargetAudienceLabel{ID: int64(i + 1), Name: name})
	}
	return labels, nil
}

func (f *fakeStore) GetProviderByName(_ context.Context, name string) (*domain.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.providers[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetClientByName(_ context.Context, name string) (*domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.clients {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) ListClients(_ context.Context, unparsed bool) ([]domain.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Client
	for id := int64(1); id <= f.nextID; id++ {
		c, ok := f.clients[id]
		if !ok {
			continue
		}
		if unparsed && f.hasWebpage(domain.ClientOwner(id)) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) UpdateClientFields(_ context.Context, c *domain.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	f.clients[c.ID] = &cp
	return nil
}

func (f *fakeStore) hasWebpage(owner domain.Owner) bool {
	for _, w := range f.webpages {
		if w.Owner == owner {
			return true
		}
	}
	return false
}

func (f *fakeStore) WebpagesFor(_ context.Context, owner domain.Owner) ([]domain.Webpage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Webpage
	for _, w := range f.webpages {
		if w.Owner == owner {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) GetWebpage(_ context.Context, id int64) (*domain.Webpage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.webpages {
		if w.ID == id {
			cp := w
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) InsertWebpage(_ context.Context, w *domain.Webpage) error {
	if err := w.Owner.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w.ID = f.id()
	f.webpages = append(f.webpages, *w)
	return nil
}

func (f *fakeStore) InsertChunks(_ context.Context, webpageID int64, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[webpageID] = append(f.chunks[webpageID], chunks...)
	return nil
}

func (f *fakeStore) ChunksFor(_ context.Context, webpageID int64) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks[webpageID], nil
}

func (f *fakeStore) SearchChunks(_ context.Context, scope domain.Scope, query []float32, limit int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastScope, f.lastQuery, f.lastLimit = scope, query, limit
	if len(f.search) > limit {
		return f.search[:limit], nil
	}
	return f.search, nil
}

// InTx applies fn directly; a set txErr simulates a failed commit.
func (f *fakeStore) InTx(_ context.Context, fn func(Repository) error) error {
	if f.txErr != nil {
		return f.txErr
	}
	return fn(f)
}

type fakeConverter struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (c *fakeConverter) Convert(_ context.Context, url string, kind domain.OwnerKind) (*convert.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, url)
	if err := c.fail[url]; err != nil {
		return nil, err
	}
	return &convert.Result{
		RawHTML:       "<html><body><h1>" + url + "</h1></body></html>",
		SanitizedHTML: "<h1>" + url + "</h1>",
		Markdown:      "# " + string(kind) + "\n" + url,
	}, nil
}

type fakeExtractor struct {
	listing *extract.ListingFields
	client  *extract.ClientFields
	err     error
}

func (e *fakeExtractor) Listing(context.Context, string) (*extract.ListingFields, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.listing == nil {
		return &extract.ListingFields{Name: "Listing", FinancialInstrument: extract.InstrumentSubsidy, TargetAudiences: []extract.TargetAudience{extract.AudienceSME}}, nil
	}
	return e.listing, nil
}

func (e *fakeExtractor) Client(context.Context, string) (*extract.ClientFields, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.client == nil {
		return &extract.ClientFields{BusinessIdentity: extract.AudienceSME}, nil
	}
	return e.client, nil
}

type fakeSplitter struct {
	n int
}

func (s fakeSplitter) Split(md string) []string {
	if s.n == 0 {
		return []string{md}
	}
	out := make([]string, s.n)
	for i := range out {
		out[i] = md
	}
	return out
}

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failOn  map[int]bool
	queries []string
}

func (e *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failOn[e.calls] {
		return nil, errors.New("embedding quota exceeded")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, text)
	return []float32{0, 1, 0}, nil
}

type fakeScorer struct {
	quality map[int64]matching.Quality
}

func (s *fakeScorer) Score(_ context.Context, client matching.ClientProfile, listing matching.ListingProfile) (*matching.MatchResult, error) {
	if len(client.Webpages) == 0 || len(listing.Webpages) == 0 {
		return nil, &domain.PreconditionViolation{Stage: "score_match", Owner: domain.ListingOwner(listing.Listing.ID), Reason: "missing webpage"}
	}
	q, ok := s.quality[listing.Listing.ID]
	if !ok {
		q = matching.QualityUnclear
	}
	return &matching.MatchResult{Quality: q}, nil
}

type harness struct {
	store     *fakeStore
	converter *fakeConverter
	extractor *fakeExtractor
	embedder  *fakeEmbedder
	scorer    *fakeScorer
	pipeline  *Pipeline
}

func newHarness(splitter fakeSplitter) *harness {
	h := &harness{
		store:     newFakeStore(),
		converter: &fakeConverter{fail: map[string]error{}},
		extractor: &fakeExtractor{},
		embedder:  &fakeEmbedder{failOn: map[int]bool{}},
		scorer:    &fakeScorer{quality: map[int64]matching.Quality{}},
	}
	h.pipeline = New(Config{Workers: 2}, Deps{
		Store:     h.store,
		Converter: h.converter,
		Extractor: h.extractor,
		Chunker:   splitter,
		Embedder:  h.embedder,
		Scorer:    h.scorer,
	})
	return h
}
