// Package provider runs catalog ingestion workflows for funding providers.
// Workflows register themselves by name from their own packages.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

// Outcome is what happened to a single catalog entry.
type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeAlreadyExists     Outcome = "already_exists"
	OutcomeSkippedInvalidURL Outcome = "skipped_invalid_url"
	OutcomeFailed            Outcome = "failed"
)

// Summary counts entry outcomes over a whole run.
type Summary struct {
	Pages             int
	Created           int
	AlreadyExists     int
	SkippedInvalidURL int
	Failed            int
}

func (s *Summary) Add(o Outcome) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeAlreadyExists:
		s.AlreadyExists++
	case OutcomeSkippedInvalidURL:
		s.SkippedInvalidURL++
	case OutcomeFailed:
		s.Failed++
	}
}

// Merge adds the counts of other to s.
func (s *Summary) Merge(other Summary) {
	s.Pages += other.Pages
	s.Created += other.Created
	s.AlreadyExists += other.AlreadyExists
	s.SkippedInvalidURL += other.SkippedInvalidURL
	s.Failed += other.Failed
}

func (s *Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("pages", s.Pages),
		zap.Int(string(OutcomeCreated), s.Created),
		zap.Int(string(OutcomeAlreadyExists), s.AlreadyExists),
		zap.Int(string(OutcomeSkippedInvalidURL), s.SkippedInvalidURL),
		zap.Int(string(OutcomeFailed), s.Failed),
	}
}

// Repository is what a workflow needs from storage.
type Repository interface {
	EnsureProvider(ctx context.Context, name, website string) (*domain.Provider, error)
	// CreateListingIfMissing reports whether a new listing was created.
	CreateListingIfMissing(ctx context.Context, providerID int64, website string) (bool, error)
}

type Deps struct {
	Repo   Repository
	Logger *zap.Logger
}

// Workflow ingests one provider's catalog.
type Workflow interface {
	Name() string
	Website() string
	// Run returns the partial summary together with any error.
	Run(ctx context.Context, providerID int64, repo Repository) (*Summary, error)
}

// Factory builds a workflow for a run.
type Factory func(logger *zap.Logger) Workflow

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a workflow available under name. It panics on duplicates.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("provider: workflow %q registered twice", name))
	}
	registry[key] = factory
}

// Names lists the registered workflows.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run ingests the catalog of the named provider, creating the provider row
// first when the database has none yet.
func Run(ctx context.Context, name string, deps Deps) (*Summary, error) {
	mu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(Names(), ", "))
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workflow := factory(logger)
	p, err := deps.Repo.EnsureProvider(ctx, workflow.Name(), workflow.Website())
	if err != nil {
		return nil, fmt.Errorf("ensure provider %s: %w", workflow.Name(), err)
	}

	logger.Info("provider workflow started",
		zap.String("provider", p.Name),
		zap.Int64("provider_id", p.ID),
	)

	summary, err := workflow.Run(ctx, p.ID, deps.Repo)
	if summary != nil {
		logger.Info("provider workflow finished", append(summary.Fields(), zap.String("provider", p.Name))...)
	}
	return summary, err
}
