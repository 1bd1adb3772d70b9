package filtering

import (
	"context"
	"fmt"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes listings contained in an exclude file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: path,
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if f.path == "" {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded, err := LoadExcludedListings(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded listings from file: %w", err)
	}

	websites := excluded.Websites()
	removed := c.Exclude(func(item *Candidate) bool {
		_, ok := websites[item.Listing.Website]
		return ok
	})

	return c, Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
