// Package matching judges how well a client fits a listing.
package matching

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	stageScoreMatch     = "score_match"
	defaultMaxLogLength = 200
)

type contentGenerator interface {
	Generate(ctx context.Context, prompt string, schema *ai.Schema) (string, error)
}

// Condition is one eligibility requirement judged against the client.
type Condition struct {
	Desc      string        `json:"condition_desc"`
	Eval      ConditionEval `json:"condition_eval"`
	Reasoning string        `json:"reasoning"`
}

type MatchResult struct {
	ListingAmbiguous bool        `json:"listing_ambiguous"`
	Conditions       []Condition `json:"conditions"`
	Quality          Quality     `json:"match_quality"`
	// Inconsistent is set when a FAILS condition came back with VERY_GOOD quality.
	Inconsistent bool   `json:"-"`
	Raw          string `json:"-"`
}

// HasFailure reports whether any condition FAILS.
func (r *MatchResult) HasFailure() bool {
	for _, c := range r.Conditions {
		if c.Eval == ConditionFails {
			return true
		}
	}
	return false
}

// ClientProfile is a client with its parsed webpages.
type ClientProfile struct {
	Client   domain.Client
	Webpages []domain.Webpage
}

// ListingProfile is a listing with its parsed webpages.
type ListingProfile struct {
	Listing  domain.Listing
	Webpages []domain.Webpage
}

type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score asks the backend for the eligibility conditions of listing and their
// evaluation against client. An ambiguous listing always scores BAD with no
// conditions.
func (s *Scorer) Score(ctx context.Context, client ClientProfile, listing ListingProfile) (*MatchResult, error) {
	if len(client.Webpages) == 0 {
		return nil, &domain.PreconditionViolation{
			Stage:  stageScoreMatch,
			Owner:  domain.ClientOwner(client.Client.ID),
			Reason: "client has no parsed webpage",
		}
	}
	if len(listing.Webpages) == 0 {
		return nil, &domain.PreconditionViolation{
			Stage:  stageScoreMatch,
			Owner:  domain.ListingOwner(listing.Listing.ID),
			Reason: "listing has no parsed webpage",
		}
	}

	prompt := buildPrompt(client, listing)

	fields := []zap.Field{
		zap.Int64("client_id", client.Client.ID),
		zap.Int64("listing_id", listing.Listing.ID),
	}

	s.logger.Debug("match request", append(fields,
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)...)

	raw, err := s.generator.Generate(ctx, prompt, matchSchema)
	if err != nil {
		return nil, fmt.Errorf("score client %d against listing %d: %w", client.Client.ID, listing.Listing.ID, err)
	}

	s.logger.Debug("match response", append(fields,
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)...)

	var result MatchResult
	if err := ai.Decode(raw, matchSchema, &result); err != nil {
		return nil, err
	}
	result.Raw = raw

	if result.ListingAmbiguous {
		if len(result.Conditions) > 0 || result.Quality != QualityBad {
			s.logger.Debug("forcing ambiguous listing to BAD", append(fields,
				zap.Int("conditions", len(result.Conditions)),
				zap.String("reported_quality", string(result.Quality)),
			)...)
		}
		result.Conditions = nil
		result.Quality = QualityBad
	}

	if result.HasFailure() && result.Quality == QualityVeryGood {
		result.Inconsistent = true
		s.logger.Warn("match quality contradicts failed condition", append(fields,
			zap.String("match_quality", string(result.Quality)),
		)...)
	}

	return &result, nil
}

func buildPrompt(client ClientProfile, listing ListingProfile) string {
	listingName := domain.Deref(listing.Listing.Name)
	if listingName == "" {
		listingName = listing.Listing.Website
	}

	replacer := strings.NewReplacer(
		"{{CLIENT_NAME}}", client.Client.Name,
		"{{CLIENT_CONTENT}}", joinMarkdown(client.Webpages),
		"{{LISTING_NAME}}", listingName,
		"{{LISTING_CONTENT}}", joinMarkdown(listing.Webpages),
	)
	return replacer.Replace(promptTemplate)
}

func joinMarkdown(pages []domain.Webpage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if md := strings.TrimSpace(p.MarkdownContent); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}
