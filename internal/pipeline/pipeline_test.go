package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/convert"
	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/extract"
	"github.com/marcus302/aanvraagapp/internal/matching"
)

func ptr[T any](v T) *T { return &v }

const eurostars = "https://www.rvo.nl/subsidies-financiering/eurostars"

func TestConvertAndPersistWebpage(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	id := h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars})
	owner := domain.ListingOwner(id)

	page, err := h.pipeline.ConvertAndPersistWebpage(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, eurostars, page.URL)
	assert.Equal(t, owner, page.Owner)
	assert.Contains(t, page.OriginalContent, "<html>")
	assert.Contains(t, page.FilteredContent, "<h1>")
	assert.Contains(t, page.MarkdownContent, "# listing")
	assert.NotZero(t, page.ID)

	_, err = h.pipeline.ConvertAndPersistWebpage(context.Background(), owner)
	var pv *domain.PreconditionViolation
	require.ErrorAs(t, err, &pv)
	assert.Equal(t, StageConvert, pv.Stage)
	assert.Len(t, h.converter.calls, 1)
}

func TestConvertKeepsTypedErrors(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	id := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example"})
	h.converter.fail["https://acme.example"] = &convert.EmptyContentError{URL: "https://acme.example", Reason: "blank body"}

	_, err := h.pipeline.ConvertAndPersistWebpage(context.Background(), domain.ClientOwner(id))
	var empty *convert.EmptyContentError
	require.ErrorAs(t, err, &empty)
	assert.Contains(t, err.Error(), "client:")

	pages, err := h.store.WebpagesFor(context.Background(), domain.ClientOwner(id))
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestConvertRejectsInvalidOwner(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	_, err := h.pipeline.ConvertAndPersistWebpage(context.Background(), domain.Owner{Kind: "provider", ID: 1})
	require.Error(t, err)
	assert.Empty(t, h.converter.calls)
}

func TestExtractListingFields(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	h.extractor.listing = &extract.ListingFields{
		IsOpen:              ptr(true),
		Name:                "Eurostars",
		FinancialInstrument: extract.InstrumentSubsidy,
		TargetAudiences:     []extract.TargetAudience{extract.AudienceSME, extract.AudienceLargeCompany},
		TargetAudienceDesc:  "Innovative SMEs",
	}
	id := h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars})
	owner := domain.ListingOwner(id)
	h.store.addWebpage(owner, "# Eurostars")

	require.NoError(t, h.pipeline.ExtractAndApplyFields(context.Background(), owner))

	l, err := h.store.GetListing(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Eurostars", domain.Deref(l.Name))
	assert.Equal(t, "SUBSIDY", domain.Deref(l.FinancialInstrument))
	assert.True(t, *l.IsOpen)
	assert.Equal(t, []string{"SME", "LARGE_COMPANY"}, l.Labels)

	err = h.pipeline.ExtractAndApplyFields(context.Background(), owner)
	var pv *domain.PreconditionViolation
	require.ErrorAs(t, err, &pv)
	assert.Contains(t, pv.Reason, "labels")
}

func TestExtractRequiresExactlyOneWebpage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pages int
	}{
		{name: "no webpage", pages: 0},
		{name: "two webpages", pages: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(fakeSplitter{})
			id := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example"})
			owner := domain.ClientOwner(id)
			for i := 0; i < tt.pages; i++ {
				h.store.addWebpage(owner, "# Acme")
			}

			err := h.pipeline.ExtractAndApplyFields(context.Background(), owner)
			var pv *domain.PreconditionViolation
			require.ErrorAs(t, err, &pv)
			assert.Equal(t, owner, pv.Owner)
			assert.Equal(t, StageExtract, pv.Stage)
		})
	}
}

func TestExtractClientFields(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	h.extractor.client = &extract.ClientFields{BusinessIdentity: extract.AudienceAgriculture, AudienceDesc: "Dairy farm"}
	id := h.store.addClient(domain.Client{Name: "Farm", Website: "https://farm.example"})
	owner := domain.ClientOwner(id)
	h.store.addWebpage(owner, "# Farm")

	require.NoError(t, h.pipeline.ExtractAndApplyFields(context.Background(), owner))

	c, err := h.store.GetClient(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "AGRICULTURE", domain.Deref(c.BusinessIdentity))
	assert.Equal(t, "Dairy farm", domain.Deref(c.AudienceDesc))
}

func TestExtractSchemaErrorIsReturned(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	h.extractor.err = &ai.SchemaValidationError{Schema: "listing_fields", Reason: "bad enum"}
	id := h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars})
	owner := domain.ListingOwner(id)
	h.store.addWebpage(owner, "# Eurostars")

	err := h.pipeline.ExtractAndApplyFields(context.Background(), owner)
	var sve *ai.SchemaValidationError
	require.ErrorAs(t, err, &sve)

	l, err := h.store.GetListing(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, l.Name)
}

func TestChunkAndEmbedSkipsFailedBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{n: 40})
	h.embedder.failOn[2] = true
	owner := domain.ListingOwner(h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars}))
	pageID := h.store.addWebpage(owner, "# Eurostars")

	stored, err := h.pipeline.ChunkAndEmbed(context.Background(), pageID)
	require.NoError(t, err)
	assert.Equal(t, 24, stored)
	assert.Equal(t, 3, h.embedder.calls)

	chunks, err := h.store.ChunksFor(context.Background(), pageID)
	require.NoError(t, err)
	require.Len(t, chunks, 24)
	for _, c := range chunks {
		assert.Equal(t, pageID, c.WebpageID)
		assert.NotEmpty(t, c.Embedding)
	}

	_, err = h.pipeline.ChunkAndEmbed(context.Background(), pageID)
	assert.True(t, domain.IsPreconditionViolation(err))
}

func TestChunkAndEmbedAllBatchesFailed(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{n: 3})
	h.embedder.failOn[1] = true
	owner := domain.ListingOwner(h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars}))
	pageID := h.store.addWebpage(owner, "# Eurostars")

	_, err := h.pipeline.ChunkAndEmbed(context.Background(), pageID)
	require.Error(t, err)

	chunks, err := h.store.ChunksFor(context.Background(), pageID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkAndEmbedTransactionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{n: 2})
	h.store.txErr = errors.New("commit failed")
	owner := domain.ListingOwner(h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars}))
	pageID := h.store.addWebpage(owner, "# Eurostars")

	_, err := h.pipeline.ChunkAndEmbed(context.Background(), pageID)
	require.ErrorIs(t, err, h.store.txErr)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	h.store.search = []domain.SearchResult{
		{Content: "a", Similarity: 0.9},
		{Content: "b", Similarity: 0.8},
		{Content: "c", Similarity: 0.7},
		{Content: "d", Similarity: 0.6},
		{Content: "e", Similarity: 0.5},
		{Content: "f", Similarity: 0.4},
	}

	results, err := h.pipeline.Search(context.Background(), domain.ListingURLScope(eurostars), "who can apply", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)
	assert.Equal(t, domain.ListingURLScope(eurostars), h.store.lastScope)
	assert.Equal(t, []string{"who can apply"}, h.embedder.queries)
	assert.Equal(t, []float32{0, 1, 0}, h.store.lastQuery)

	_, err = h.pipeline.Search(context.Background(), domain.Scope{Kind: domain.OwnerClient}, "q", 3)
	require.Error(t, err)

	_, err = h.pipeline.Search(context.Background(), domain.ClientScope(1), "  ", 3)
	require.Error(t, err)
}

func TestScoreMatch(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	clientID := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example"})
	listingID := h.store.addListing(domain.Listing{ProviderID: 1, Website: eurostars})
	h.scorer.quality[listingID] = matching.QualityVeryGood

	_, err := h.pipeline.ScoreMatch(context.Background(), clientID, listingID)
	assert.True(t, domain.IsPreconditionViolation(err))

	h.store.addWebpage(domain.ClientOwner(clientID), "# Acme")
	h.store.addWebpage(domain.ListingOwner(listingID), "# Eurostars")

	result, err := h.pipeline.ScoreMatch(context.Background(), clientID, listingID)
	require.NoError(t, err)
	assert.Equal(t, matching.QualityVeryGood, result.Quality)

	_, err = h.pipeline.ScoreMatch(context.Background(), clientID, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSuitableListings(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	rvo := h.store.addProvider("rvo")
	other := h.store.addProvider("snn")

	clientID := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example", BusinessIdentity: ptr("SME")})
	h.store.addWebpage(domain.ClientOwner(clientID), "# Acme")

	add := func(provider int64, website string, open bool, instrument string, quality matching.Quality) int64 {
		id := h.store.addListing(domain.Listing{
			ProviderID:          provider,
			Website:             website,
			IsOpen:              ptr(open),
			FinancialInstrument: ptr(instrument),
			Labels:              []string{"SME"},
		})
		h.store.addWebpage(domain.ListingOwner(id), "# "+website)
		h.scorer.quality[id] = quality
		return id
	}

	good := add(rvo.ID, "https://www.rvo.nl/a", true, "SUBSIDY", matching.QualityVeryGood)
	add(rvo.ID, "https://www.rvo.nl/b", true, "SUBSIDY", matching.QualityBad)
	add(rvo.ID, "https://www.rvo.nl/c", false, "SUBSIDY", matching.QualityVeryGood)
	add(rvo.ID, "https://www.rvo.nl/d", true, "LOAN", matching.QualityVeryGood)
	add(other.ID, "https://snn.nl/e", true, "SUBSIDY", matching.QualityVeryGood)

	suitable, err := h.pipeline.SuitableListings(context.Background(), clientID, SuitableOptions{
		OnlyOpen:         true,
		Instruments:      []string{"SUBSIDY"},
		ExcludeProviders: []string{"snn", "unknown"},
	})
	require.NoError(t, err)
	require.Len(t, suitable.Listings, 1)
	assert.Equal(t, good, suitable.Listings[0].Listing.ID)
	assert.Equal(t, matching.QualityVeryGood, suitable.Listings[0].Match.Quality)
	assert.NotEmpty(t, suitable.Filters)
}

func TestSuitableListingsNeedsParsedClient(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	clientID := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example"})

	_, err := h.pipeline.SuitableListings(context.Background(), clientID, SuitableOptions{})
	assert.True(t, domain.IsPreconditionViolation(err))
}

func TestPendingOwners(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	parsed := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/a"})
	pending := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/b"})
	h.store.addWebpage(domain.ListingOwner(parsed), "# A")

	owners, err := h.pipeline.PendingOwners(context.Background(), domain.OwnerListing, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Owner{domain.ListingOwner(pending)}, owners)

	owners, err = h.pipeline.PendingOwners(context.Background(), domain.OwnerListing, true)
	require.NoError(t, err)
	assert.Len(t, owners, 2)
}
