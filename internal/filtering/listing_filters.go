package filtering

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

type openFilter struct {
	enabled bool
}

// NewOpen creates a filter that keeps only listings known to be open.
// Listings whose status was never extracted are dropped.
func NewOpen(enabled bool) Filter {
	return &openFilter{enabled: enabled}
}

func (f *openFilter) Name() string { return "is_open" }

func (f *openFilter) Disable(string) { f.enabled = false }

func (f *openFilter) IsEnabled() bool { return f.enabled }

func (f *openFilter) Validate() error { return nil }

func (f *openFilter) Apply(_ context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	excluded := c.Exclude(func(item *Candidate) bool {
		return item.Listing.IsOpen == nil || !*item.Listing.IsOpen
	})
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

type instrumentsFilter struct {
	instruments []string
}

// NewInstruments creates a filter that keeps listings offering one of the given
// financial instruments. An empty list disables the filter.
func NewInstruments(instruments []string) Filter {
	return &instrumentsFilter{instruments: instruments}
}

func (f *instrumentsFilter) Name() string { return "instruments" }

func (f *instrumentsFilter) Disable(string) { f.instruments = nil }

func (f *instrumentsFilter) IsEnabled() bool { return len(f.instruments) > 0 }

func (f *instrumentsFilter) Validate() error { return nil }

func (f *instrumentsFilter) Apply(_ context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	excluded := c.Exclude(func(item *Candidate) bool {
		instrument := domain.Deref(item.Listing.FinancialInstrument)
		return !slices.ContainsFunc(f.instruments, func(want string) bool {
			return strings.EqualFold(want, instrument)
		})
	})
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *instrumentsFilter) Status() Status {
	details := map[string]string{}
	if len(f.instruments) > 0 {
		details["instruments"] = strings.Join(f.instruments, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Details: details}
}

type audienceFilter struct {
	identity string
	enabled  bool
	reason   string
}

// NewTargetAudience creates a filter that keeps listings whose target audience
// labels include the client's business identity.
func NewTargetAudience(businessIdentity *string) Filter {
	f := &audienceFilter{identity: domain.Deref(businessIdentity), enabled: true}
	if f.identity == "" {
		f.Disable("client has no business identity")
	}
	return f
}

func (f *audienceFilter) Name() string { return "target_audience" }

func (f *audienceFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *audienceFilter) IsEnabled() bool { return f.enabled }

func (f *audienceFilter) Validate() error { return nil }

func (f *audienceFilter) Apply(_ context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	excluded := c.Exclude(func(item *Candidate) bool {
		return !slices.Contains(item.Listing.Labels, f.identity)
	})
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *audienceFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.enabled,
		Reason:  f.reason,
		Details: map[string]string{"business_identity": f.identity},
	}
}

type providersFilter struct {
	providers []int64
}

// NewExcludedProviders creates a filter that removes listings of the given providers.
func NewExcludedProviders(providerIDs []int64) Filter {
	return &providersFilter{providers: providerIDs}
}

func (f *providersFilter) Name() string { return "providers" }

func (f *providersFilter) Disable(string) {}

func (f *providersFilter) IsEnabled() bool { return true }

func (f *providersFilter) Validate() error { return nil }

func (f *providersFilter) Apply(_ context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if len(f.providers) == 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(item *Candidate) bool {
		return slices.Contains(f.providers, item.Listing.ProviderID)
	})
	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *providersFilter) Status() Status {
	details := map[string]string{}
	if len(f.providers) > 0 {
		ids := make([]string, 0, len(f.providers))
		for _, id := range f.providers {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		details["providers"] = strings.Join(ids, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
