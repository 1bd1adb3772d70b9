// Package extract pulls structured listing and client fields out of Markdown
// with a schema-constrained model call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/utils"
)

var (
	//go:embed listing_prompt.md
	listingPrompt string
	//go:embed client_prompt.md
	clientPrompt string
)

const defaultMaxLogLength = 200

// ListingFields are the structured facts about a listing.
type ListingFields struct {
	IsOpen              *bool
	OpensAt             *time.Time
	ClosesAt            *time.Time
	LastChecked         *time.Time
	Name                string
	TargetAudiences     []TargetAudience
	FinancialInstrument FinancialInstrument
	TargetAudienceDesc  string
}

// ClientFields are the structured facts about a client.
type ClientFields struct {
	BusinessIdentity TargetAudience
	AudienceDesc     string
}

type listingPayload struct {
	IsOpen              *bool    `json:"is_open"`
	OpensAt             *string  `json:"opens_at"`
	ClosesAt            *string  `json:"closes_at"`
	LastChecked         *string  `json:"last_checked"`
	Name                string   `json:"name"`
	TargetAudiences     []string `json:"target_audiences"`
	FinancialInstrument string   `json:"financial_instrument"`
	TargetAudienceDesc  string   `json:"target_audience_desc"`
}

type clientPayload struct {
	BusinessIdentity string `json:"business_identity"`
	AudienceDesc     string `json:"audience_desc"`
}

type Extractor struct {
	backend   ai.Backend
	logger    *zap.Logger
	maxLogLen int
}

func New(backend ai.Backend, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{backend: backend, logger: logger, maxLogLen: maxLogLength}
}

// Listing extracts ListingFields from the Markdown of a listing page.
func (e *Extractor) Listing(ctx context.Context, md string) (*ListingFields, error) {
	var payload listingPayload
	if err := e.generate(ctx, listingPrompt, md, ListingSchema, &payload); err != nil {
		return nil, err
	}

	fields := &ListingFields{
		IsOpen:              payload.IsOpen,
		Name:                strings.TrimSpace(payload.Name),
		FinancialInstrument: FinancialInstrument(payload.FinancialInstrument),
		TargetAudienceDesc:  strings.TrimSpace(payload.TargetAudienceDesc),
	}
	for _, name := range utils.Dedupe(payload.TargetAudiences) {
		fields.TargetAudiences = append(fields.TargetAudiences, TargetAudience(name))
	}

	var err error
	if fields.OpensAt, err = parseDate(payload.OpensAt); err != nil {
		return nil, err
	}
	if fields.ClosesAt, err = parseDate(payload.ClosesAt); err != nil {
		return nil, err
	}
	if fields.LastChecked, err = parseDate(payload.LastChecked); err != nil {
		return nil, err
	}

	return fields, nil
}

// Client extracts ClientFields from the Markdown of a client website.
func (e *Extractor) Client(ctx context.Context, md string) (*ClientFields, error) {
	var payload clientPayload
	if err := e.generate(ctx, clientPrompt, md, ClientSchema, &payload); err != nil {
		return nil, err
	}

	return &ClientFields{
		BusinessIdentity: TargetAudience(payload.BusinessIdentity),
		AudienceDesc:     strings.TrimSpace(payload.AudienceDesc),
	}, nil
}

func (e *Extractor) generate(ctx context.Context, template, md string, schema *ai.Schema, target any) error {
	if strings.TrimSpace(md) == "" {
		return errors.New("markdown content is empty")
	}

	prompt := buildPrompt(template, md)

	e.logger.Debug("extract fields request",
		zap.String("schema", schema.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.backend.Generate(ctx, prompt, schema)
	if err != nil {
		return fmt.Errorf("extract %s: %w", schema.Name, err)
	}

	e.logger.Debug("extract fields response",
		zap.String("schema", schema.Name),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return ai.Decode(raw, schema, target)
}

func buildPrompt(template, md string) string {
	prompt := strings.ReplaceAll(template, "{{AUDIENCE_DOC}}", audienceDocumentation())
	prompt = strings.ReplaceAll(prompt, "{{INSTRUMENT_DOC}}", instrumentDocumentation())
	return strings.ReplaceAll(prompt, "{{MD_CONTENT}}", md)
}

func parseDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*v))
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", *v, err)
	}
	return &t, nil
}
