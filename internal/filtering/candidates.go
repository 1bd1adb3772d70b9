package filtering

import (
	"encoding/json"
	"os"
	"time"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/matching"
)

// Candidate is a listing under consideration for a client.
type Candidate struct {
	Listing domain.Listing
	Match   *matching.MatchResult
	// MatchError is set when scoring failed but the listing was kept.
	MatchError string
}

type Candidates struct {
	Items []*Candidate
}

func NewCandidates(listings []domain.Listing) *Candidates {
	c := &Candidates{Items: make([]*Candidate, 0, len(listings))}
	for _, l := range listings {
		c.Items = append(c.Items, &Candidate{Listing: l})
	}
	return c
}

func (c *Candidates) Len() int {
	return len(c.Items)
}

// Exclude removes every candidate matching drop, keeping the order of the
// rest, and returns the websites of the removed listings.
func (c *Candidates) Exclude(drop func(*Candidate) bool) []string {
	var excluded []string
	kept := c.Items[:0]
	for _, item := range c.Items {
		if drop(item) {
			excluded = append(excluded, item.Listing.Website)
			continue
		}
		kept = append(kept, item)
	}
	clear(c.Items[len(kept):])
	c.Items = kept
	return excluded
}

func (c *Candidates) ToExcluded(actor, reason string) *ExcludedListings {
	excluded := &ExcludedListings{}
	for _, item := range c.Items {
		excluded.Items = append(excluded.Items, &ExcludedListing{
			Website:    item.Listing.Website,
			Actor:      actor,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

const (
	ExcludeActorUser = "user"
	ExcludeActorAI   = "ai"
)

// ExcludedListings is the on-disk list of listings never to suggest again.
type ExcludedListings struct {
	Items []*ExcludedListing
}

type ExcludedListing struct {
	Website    string
	Actor      string
	Reason     string
	ExcludedAt time.Time
}

// LoadExcludedListings reads an exclude file. A missing or empty file is an empty list.
func LoadExcludedListings(path string) (*ExcludedListings, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &ExcludedListings{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedListings{}, nil
	}

	var excluded ExcludedListings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedListings) Append(s *ExcludedListings) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedListings) Websites() map[string]struct{} {
	websites := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		websites[item.Website] = struct{}{}
	}
	return websites
}

func (e *ExcludedListings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
