package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marcus302/aanvraagapp/internal/ai"
)

type stubBackend struct {
	output  string
	err     error
	prompts []string
	schemas []*ai.Schema
}

func (s *stubBackend) Name() string  { return "stub" }
func (s *stubBackend) Model() string { return "stub-model" }

func (s *stubBackend) Generate(ctx context.Context, prompt string, schema *ai.Schema) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.schemas = append(s.schemas, schema)
	return s.output, s.err
}

func (s *stubBackend) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *stubBackend) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func TestListingExtraction(t *testing.T) {
	backend := &stubBackend{output: "```json\n" + `{
		"is_open": true,
		"opens_at": "2025-01-15",
		"closes_at": null,
		"last_checked": "2025-03-01",
		"name": "Eurostars",
		"target_audiences": ["SME", "SME", "LARGE_COMPANY"],
		"financial_instrument": "SUBSIDY",
		"target_audience_desc": "Innovatieve mkb-ondernemers met een internationaal R&D-project."
	}` + "\n```"}

	fields, err := New(backend, nil, 0).Listing(context.Background(), "# Eurostars\n\nVoor MKB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fields.Name != "Eurostars" {
		t.Fatalf("unexpected name %q", fields.Name)
	}
	if fields.IsOpen == nil || !*fields.IsOpen {
		t.Fatalf("expected is_open true, got %v", fields.IsOpen)
	}
	if fields.OpensAt == nil || !fields.OpensAt.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected opens_at %v", fields.OpensAt)
	}
	if fields.ClosesAt != nil {
		t.Fatalf("expected nil closes_at, got %v", fields.ClosesAt)
	}
	if len(fields.TargetAudiences) != 2 || fields.TargetAudiences[0] != AudienceSME || fields.TargetAudiences[1] != AudienceLargeCompany {
		t.Fatalf("expected deduplicated audiences, got %v", fields.TargetAudiences)
	}
	if fields.FinancialInstrument != InstrumentSubsidy {
		t.Fatalf("unexpected instrument %q", fields.FinancialInstrument)
	}

	if backend.schemas[0] != ListingSchema {
		t.Fatal("expected listing schema to be requested")
	}
	prompt := backend.prompts[0]
	for _, want := range []string{"# Eurostars", `In Dutch called "MKB"`, "- LOAN_GUARANTEE", "target_audience_desc"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("prompt has unreplaced placeholders:\n%s", prompt)
	}
}

func TestListingExtractionRejectsInvalidResponses(t *testing.T) {
	t.Parallel()

	valid := `"is_open": null, "opens_at": null, "closes_at": null, "last_checked": null, "name": "X", "financial_instrument": "LOAN", "target_audience_desc": "d"`

	tests := []struct {
		name   string
		output string
		path   string
	}{
		{name: "empty audiences", output: `{` + valid + `, "target_audiences": []}`, path: "$.target_audiences"},
		{name: "unknown audience", output: `{` + valid + `, "target_audiences": ["ROBOTS"]}`, path: "$.target_audiences[*]"},
		{name: "missing field", output: `{"name": "X"}`},
		{name: "not json", output: "sorry, I cannot help"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(&stubBackend{output: tt.output}, nil, 0).Listing(context.Background(), "# X")
			var sve *ai.SchemaValidationError
			if !errors.As(err, &sve) {
				t.Fatalf("expected SchemaValidationError, got %v", err)
			}
			if tt.path != "" && sve.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, sve.Path)
			}
			if sve.Raw != tt.output {
				t.Fatal("expected raw response to be attached")
			}
		})
	}
}

func TestClientExtraction(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{output: `{"business_identity": "SME", "audience_desc": " Spheer bouwt AI-oplossingen. "}`}
	fields, err := New(backend, nil, 0).Client(context.Background(), "# Spheer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields.BusinessIdentity != AudienceSME {
		t.Fatalf("unexpected identity %q", fields.BusinessIdentity)
	}
	if fields.AudienceDesc != "Spheer bouwt AI-oplossingen." {
		t.Fatalf("unexpected description %q", fields.AudienceDesc)
	}
	if backend.schemas[0] != ClientSchema {
		t.Fatal("expected client schema")
	}
}

func TestExtractionPropagatesUnsupported(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{err: ai.Unsupported("ollama", "structured output")}
	_, err := New(backend, nil, 0).Client(context.Background(), "# x")
	if !errors.Is(err, ai.ErrUnsupportedCapability) {
		t.Fatalf("expected unsupported capability, got %v", err)
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	if got, ok := ParseTargetAudience(" sme "); !ok || got != AudienceSME {
		t.Fatalf("unexpected audience %q %v", got, ok)
	}
	if _, ok := ParseTargetAudience("robots"); ok {
		t.Fatal("expected unknown audience to fail")
	}
	if got, ok := ParseFinancialInstrument("loan_guarantee"); !ok || got != InstrumentLoanGuarantee {
		t.Fatalf("unexpected instrument %q %v", got, ok)
	}
}
