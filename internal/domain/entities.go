package domain

import "time"

type Provider struct {
	ID      int64
	Name    string
	Website string
}

// Listing is a subsidy or other funding opportunity. Extracted fields stay nil
// until field extraction has run.
type Listing struct {
	ID                  int64
	ProviderID          int64
	Website             string
	IsOpen              *bool
	OpensAt             *time.Time
	ClosesAt            *time.Time
	LastChecked         *time.Time
	Name                *string
	FinancialInstrument *string
	TargetAudienceDesc  *string
	Labels              []string
}

// Client is a company looking for funding.
type Client struct {
	ID               int64
	Name             string
	Website          string
	BusinessIdentity *string
	AudienceDesc     *string
}

// Webpage is one fetched page and its derived representations.
type Webpage struct {
	ID              int64
	Owner           Owner
	URL             string
	OriginalContent string
	FilteredContent string
	MarkdownContent string
}

type Chunk struct {
	ID        int64
	WebpageID int64
	Content   string
	Embedding []float32
}

type TargetAudienceLabel struct {
	ID   int64
	Name string
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	Content    string
	URL        string
	Similarity float64
}

// ListingFilter narrows candidate listings. Zero values match everything.
type ListingFilter struct {
	ProviderID int64
	// Unparsed selects listings without a webpage.
	Unparsed bool
}

// Deref returns the pointed-to string or an empty one.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
