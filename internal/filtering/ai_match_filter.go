package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/matching"
)

const defaultMatchConcurrency = 4

// MatchFunc scores one listing against the client being matched.
type MatchFunc func(ctx context.Context, listing domain.Listing) (*matching.MatchResult, error)

type AIMatchConfig struct {
	Enabled     bool
	Concurrency int
	// MinimumQuality is the worst match quality kept. BAD is always dropped.
	MinimumQuality matching.Quality
	// ExcludeFile receives listings rejected by the scorer when set.
	ExcludeFile string
}

type AIMatchDeps struct {
	Logger *zap.Logger
	Match  MatchFunc
}

type aiMatchFilter struct {
	enabled bool
	reason  string
	config  *AIMatchConfig
	deps    *AIMatchDeps
}

// NewAIMatch creates the scoring step. Candidates are scored in parallel and
// the ones below the minimum quality are dropped.
func NewAIMatch(cfg *AIMatchConfig, deps *AIMatchDeps) Filter {
	return &aiMatchFilter{
		enabled: cfg.Enabled,
		config:  cfg,
		deps:    deps,
	}
}

func (f *aiMatchFilter) Name() string { return "ai_match" }

func (f *aiMatchFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *aiMatchFilter) IsEnabled() bool { return f.enabled }

func (f *aiMatchFilter) Validate() error {
	if f.deps == nil || f.deps.Match == nil {
		return fmt.Errorf("deps are not initialized: filter is not usable")
	}
	if f.config.MinimumQuality != "" {
		if _, ok := matching.ParseQuality(string(f.config.MinimumQuality)); !ok {
			return fmt.Errorf("unknown minimum match quality %q", f.config.MinimumQuality)
		}
	}
	if f.deps.Logger == nil {
		f.deps.Logger = zap.NewNop()
	}
	return nil
}

func (f *aiMatchFilter) Apply(ctx context.Context, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()

	if err := f.score(ctx, c); err != nil {
		return c, Step{}, err
	}

	rejected := &Candidates{}
	c.Exclude(func(item *Candidate) bool {
		if item.Match == nil {
			return item.MatchError == ""
		}
		if f.keep(item.Match.Quality) {
			return false
		}
		rejected.Items = append(rejected.Items, item)
		return true
	})

	if rejected.Len() > 0 {
		if err := f.appendToExcludeFile(rejected); err != nil {
			f.deps.Logger.Warn("failed to append listings to exclude file", zap.Error(err))
		}
	}

	f.deps.Logger.Info("AI matching completed",
		zap.Int("initial_listings", initial),
		zap.Int("approved_listings", c.Len()),
	)

	left := c.Len()
	return c, Step{Initial: initial, Dropped: initial - left, Left: left}, nil
}

func (f *aiMatchFilter) score(ctx context.Context, c *Candidates) error {
	limit := f.config.Concurrency
	if limit <= 0 {
		limit = defaultMatchConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, item := range c.Items {
		g.Go(func() error {
			listingID := zap.Int64("listing_id", item.Listing.ID)

			result, err := f.deps.Match(gctx, item.Listing)
			switch {
			case err == nil:
				item.Match = result
				f.deps.Logger.Info("listing scored",
					listingID,
					zap.String("match_quality", string(result.Quality)),
					zap.Bool("inconsistent", result.Inconsistent),
				)
			case domain.IsPreconditionViolation(err):
				f.deps.Logger.Info("listing skipped", listingID, zap.Error(err))
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				f.deps.Logger.Warn("AI evaluation failed", listingID, zap.Error(err))
				item.MatchError = err.Error()
			}
			return nil
		})
	}

	return g.Wait()
}

func (f *aiMatchFilter) keep(q matching.Quality) bool {
	if q == matching.QualityBad {
		return false
	}
	if f.config.MinimumQuality == "" {
		return true
	}
	return q.AtLeast(f.config.MinimumQuality)
}

func (f *aiMatchFilter) appendToExcludeFile(rejected *Candidates) error {
	path := strings.TrimSpace(f.config.ExcludeFile)
	if path == "" {
		return nil
	}

	excluded, err := LoadExcludedListings(path)
	if err != nil {
		return fmt.Errorf("load excluded listings: %w", err)
	}

	excluded.Append(rejected.ToExcluded(ExcludeActorAI, "match quality below threshold"))

	if err := excluded.ToFile(path); err != nil {
		return fmt.Errorf("write excluded listings: %w", err)
	}

	f.deps.Logger.Info("listings appended to exclude file",
		zap.Int("count", rejected.Len()),
		zap.String("exclude_file", path),
	)

	return nil
}

func (f *aiMatchFilter) Status() Status {
	details := map[string]string{
		"concurrency": strconv.Itoa(f.config.Concurrency),
	}
	if f.config.MinimumQuality != "" {
		details["minimum_quality"] = string(f.config.MinimumQuality)
	}
	if f.config.ExcludeFile != "" {
		details["exclude_file"] = f.config.ExcludeFile
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
