package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/fetch"
)

func TestQueueIsolatesFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{n: 2})
	ok := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/ok"})
	broken := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/broken"})
	client := h.store.addClient(domain.Client{Name: "Acme", Website: "https://acme.example"})
	h.converter.fail["https://www.rvo.nl/broken"] = &fetch.Error{URL: "https://www.rvo.nl/broken", StatusCode: 404}

	owners := []domain.Owner{domain.ListingOwner(ok), domain.ListingOwner(broken), domain.ClientOwner(client)}
	results := h.pipeline.RunAll(context.Background(), owners)
	require.Len(t, results, 3)

	ids := map[string]bool{}
	byOwner := map[domain.Owner]JobResult{}
	for _, r := range results {
		ids[r.ID] = true
		byOwner[r.Owner] = r
	}
	assert.Len(t, ids, 3)

	assert.NoError(t, byOwner[domain.ListingOwner(ok)].Err)
	assert.Equal(t, 2, byOwner[domain.ListingOwner(ok)].Chunks)
	assert.NoError(t, byOwner[domain.ClientOwner(client)].Err)

	var fe *fetch.Error
	require.True(t, errors.As(byOwner[domain.ListingOwner(broken)].Err, &fe))
	assert.Equal(t, 404, fe.StatusCode)
}

func TestQueueCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{})
	id := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.pipeline.RunAll(ctx, []domain.Owner{domain.ListingOwner(id)})
	assert.Empty(t, results)
}

func TestProcessResumesAtMissingStage(t *testing.T) {
	t.Parallel()

	h := newHarness(fakeSplitter{n: 3})
	name := "Eurostars"
	id := h.store.addListing(domain.Listing{ProviderID: 1, Website: "https://www.rvo.nl/a", Name: &name, Labels: []string{"SME"}})
	owner := domain.ListingOwner(id)
	h.store.addWebpage(owner, "# Eurostars")

	chunks, err := h.pipeline.Process(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 3, chunks)
	assert.Empty(t, h.converter.calls)

	chunks, err = h.pipeline.Process(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 3, chunks)
	assert.Equal(t, 1, h.embedder.calls)
}
