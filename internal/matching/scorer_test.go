package matching

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/domain"
)

type stubGenerator struct {
	response string
	err      error
	prompt   string
	schema   *ai.Schema
	calls    int
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, schema *ai.Schema) (string, error) {
	s.calls++
	s.prompt = prompt
	s.schema = schema
	return s.response, s.err
}

func profiles() (ClientProfile, ListingProfile) {
	name := "Eurostars"
	client := ClientProfile{
		Client:   domain.Client{ID: 1, Name: "Acme BV", Website: "https://acme.example"},
		Webpages: []domain.Webpage{{ID: 10, MarkdownContent: "# Acme\nWe build sensors."}},
	}
	listing := ListingProfile{
		Listing:  domain.Listing{ID: 2, Website: "/subsidies/eurostars", Name: &name},
		Webpages: []domain.Webpage{{ID: 20, MarkdownContent: "# Eurostars\nFor innovative SMEs."}},
	}
	return client, listing
}

func TestScorePrompt(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{"listing_ambiguous":false,"conditions":[],"match_quality":"UNCLEAR"}`}
	client, listing := profiles()

	result, err := NewScorer(gen, nil, 0).Score(context.Background(), client, listing)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Quality != QualityUnclear {
		t.Fatalf("expected UNCLEAR, got %s", result.Quality)
	}
	if gen.schema != matchSchema {
		t.Fatalf("expected match schema to be requested")
	}
	for _, want := range []string{"Acme BV", "We build sensors.", "Eurostars", "For innovative SMEs."} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt does not contain %q", want)
		}
	}
	if strings.Contains(gen.prompt, "{{") {
		t.Fatalf("prompt contains unreplaced placeholder")
	}
}

func TestScoreConditions(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: "```json\n" + `{
		"listing_ambiguous": false,
		"conditions": [
			{"condition_desc": "Applicant is an SME", "condition_eval": "PASSES", "reasoning": "Acme has 40 staff"},
			{"condition_desc": "International consortium", "condition_eval": "OPPORTUNITY", "reasoning": "Could partner abroad"}
		],
		"match_quality": "INTERESTING"
	}` + "\n```"}
	client, listing := profiles()

	result, err := NewScorer(gen, nil, 0).Score(context.Background(), client, listing)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(result.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(result.Conditions))
	}
	if result.Conditions[1].Eval != ConditionOpportunity {
		t.Fatalf("unexpected eval %s", result.Conditions[1].Eval)
	}
	if result.Inconsistent || result.HasFailure() {
		t.Fatalf("result should be consistent without failures: %+v", result)
	}
	if result.Raw == "" {
		t.Fatalf("expected raw response to be kept")
	}
}

func TestScoreAmbiguousListingIsBad(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{
		"listing_ambiguous": true,
		"conditions": [{"condition_desc": "x", "condition_eval": "PASSES", "reasoning": "y"}],
		"match_quality": "VERY_GOOD"
	}`}
	client, listing := profiles()

	result, err := NewScorer(gen, nil, 0).Score(context.Background(), client, listing)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if result.Quality != QualityBad {
		t.Fatalf("expected BAD for ambiguous listing, got %s", result.Quality)
	}
	if len(result.Conditions) != 0 {
		t.Fatalf("expected conditions to be cleared, got %d", len(result.Conditions))
	}
}

func TestScoreFlagsInconsistentResult(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	gen := &stubGenerator{response: `{
		"listing_ambiguous": false,
		"conditions": [{"condition_desc": "Located in NL", "condition_eval": "FAILS", "reasoning": "Based in BE"}],
		"match_quality": "VERY_GOOD"
	}`}
	client, listing := profiles()

	result, err := NewScorer(gen, zap.New(core), 0).Score(context.Background(), client, listing)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !result.Inconsistent {
		t.Fatalf("expected inconsistent flag")
	}
	if result.Quality != QualityVeryGood {
		t.Fatalf("quality should be returned as reported, got %s", result.Quality)
	}
	if logs.FilterMessage("match quality contradicts failed condition").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestScoreRejectsInvalidResponse(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{response: `{"listing_ambiguous":false,"conditions":[],"match_quality":"GREAT"}`}
	client, listing := profiles()

	_, err := NewScorer(gen, nil, 0).Score(context.Background(), client, listing)
	var sve *ai.SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
}

func TestScoreBackendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	gen := &stubGenerator{err: boom}
	client, listing := profiles()

	_, err := NewScorer(gen, nil, 0).Score(context.Background(), client, listing)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestScorePreconditions(t *testing.T) {
	t.Parallel()

	client, listing := profiles()
	noClientPages := client
	noClientPages.Webpages = nil
	noListingPages := listing
	noListingPages.Webpages = nil

	tests := []struct {
		name    string
		client  ClientProfile
		listing ListingProfile
		owner   domain.Owner
	}{
		{name: "client without webpage", client: noClientPages, listing: listing, owner: domain.ClientOwner(1)},
		{name: "listing without webpage", client: client, listing: noListingPages, owner: domain.ListingOwner(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{}
			_, err := NewScorer(gen, nil, 0).Score(context.Background(), tt.client, tt.listing)

			var pv *domain.PreconditionViolation
			if !errors.As(err, &pv) {
				t.Fatalf("expected precondition violation, got %v", err)
			}
			if pv.Owner != tt.owner || pv.Stage != "score_match" {
				t.Fatalf("unexpected violation: %+v", pv)
			}
			if gen.calls != 0 {
				t.Fatalf("backend must not be called")
			}
		})
	}
}

func TestQualityAtLeast(t *testing.T) {
	t.Parallel()

	if !QualityVeryGood.AtLeast(QualityInteresting) {
		t.Fatalf("VERY_GOOD should rank above INTERESTING")
	}
	if QualityBad.AtLeast(QualityUnclear) {
		t.Fatalf("BAD should rank below UNCLEAR")
	}
	if _, ok := ParseQuality("GREAT"); ok {
		t.Fatalf("unknown quality should not parse")
	}
}
