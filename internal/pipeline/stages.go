package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/logger"
)

// ConvertAndPersistWebpage fetches the owner's website, converts it and stores
// the resulting webpage. An owner gets exactly one webpage.
func (p *Pipeline) ConvertAndPersistWebpage(ctx context.Context, owner domain.Owner) (*domain.Webpage, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	log := p.stageLogger(StageConvert, owner)

	url, err := p.website(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", owner, err)
	}

	existing, err := p.store.WebpagesFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &domain.PreconditionViolation{
			Stage:  StageConvert,
			Owner:  owner,
			Reason: "owner already has a webpage",
		}
	}

	result, err := p.converter.Convert(ctx, url, owner.Kind)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", owner, err)
	}

	page := &domain.Webpage{
		Owner:           owner,
		URL:             url,
		OriginalContent: result.RawHTML,
		FilteredContent: result.SanitizedHTML,
		MarkdownContent: result.Markdown,
	}
	if err := p.store.InsertWebpage(ctx, page); err != nil {
		return nil, err
	}

	log.Info("webpage stored", zap.Int64("webpage_id", page.ID), zap.String("url", url))
	return page, nil
}

// ExtractAndApplyFields fills the structured fields of an owner from its
// single webpage. Listings also get their target audience labels.
func (p *Pipeline) ExtractAndApplyFields(ctx context.Context, owner domain.Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	log := p.stageLogger(StageExtract, owner)

	pages, err := p.store.WebpagesFor(ctx, owner)
	if err != nil {
		return err
	}
	if len(pages) != 1 {
		return &domain.PreconditionViolation{
			Stage:  StageExtract,
			Owner:  owner,
			Reason: fmt.Sprintf("expected exactly one webpage, found %d", len(pages)),
		}
	}
	md := pages[0].MarkdownContent

	switch owner.Kind {
	case domain.OwnerListing:
		return p.extractListing(ctx, log, owner, md)
	default:
		return p.extractClient(ctx, log, owner, md)
	}
}

func (p *Pipeline) extractListing(ctx context.Context, log *zap.Logger, owner domain.Owner, md string) error {
	listing, err := p.store.GetListing(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("load %s: %w", owner, err)
	}
	if len(listing.Labels) > 0 {
		return &domain.PreconditionViolation{
			Stage:  StageExtract,
			Owner:  owner,
			Reason: "listing already has target audience labels",
		}
	}

	fields, err := p.extractor.Listing(ctx, md)
	if err != nil {
		return fmt.Errorf("extract fields for %s: %w", owner, err)
	}

	listing.IsOpen = fields.IsOpen
	listing.OpensAt = fields.OpensAt
	listing.ClosesAt = fields.ClosesAt
	listing.LastChecked = fields.LastChecked
	listing.Name = &fields.Name
	instrument := string(fields.FinancialInstrument)
	listing.FinancialInstrument = &instrument
	listing.TargetAudienceDesc = &fields.TargetAudienceDesc

	labels := make([]string, 0, len(fields.TargetAudiences))
	for _, a := range fields.TargetAudiences {
		labels = append(labels, string(a))
	}

	err = p.store.InTx(ctx, func(r Repository) error {
		if err := r.UpdateListingFields(ctx, listing); err != nil {
			return err
		}
		_, err := r.AttachLabels(ctx, listing.ID, labels)
		return err
	})
	if err != nil {
		return fmt.Errorf("apply fields to %s: %w", owner, err)
	}

	log.Info("listing fields applied",
		zap.String("name", fields.Name),
		zap.String("financial_instrument", instrument),
		zap.Strings("target_audiences", labels),
	)
	return nil
}

func (p *Pipeline) extractClient(ctx context.Context, log *zap.Logger, owner domain.Owner, md string) error {
	client, err := p.store.GetClient(ctx, owner.ID)
	if err != nil {
		return fmt.Errorf("load %s: %w", owner, err)
	}

	fields, err := p.extractor.Client(ctx, md)
	if err != nil {
		return fmt.Errorf("extract fields for %s: %w", owner, err)
	}

	identity := string(fields.BusinessIdentity)
	client.BusinessIdentity = &identity
	client.AudienceDesc = &fields.AudienceDesc

	if err := p.store.UpdateClientFields(ctx, client); err != nil {
		return fmt.Errorf("apply fields to %s: %w", owner, err)
	}

	log.Info("client fields applied", zap.String("business_identity", identity))
	return nil
}

// ChunkAndEmbed splits the webpage's markdown, embeds the chunks in batches and
// stores the ones that embedded successfully. It returns how many were stored.
func (p *Pipeline) ChunkAndEmbed(ctx context.Context, webpageID int64) (int, error) {
	page, err := p.store.GetWebpage(ctx, webpageID)
	if err != nil {
		return 0, fmt.Errorf("load webpage %d: %w", webpageID, err)
	}
	log := p.stageLogger(StageChunk, page.Owner).With(zap.Int64("webpage_id", webpageID))

	existing, err := p.store.ChunksFor(ctx, webpageID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, &domain.PreconditionViolation{
			Stage:  StageChunk,
			Owner:  page.Owner,
			Reason: fmt.Sprintf("webpage %d already has %d chunks", webpageID, len(existing)),
		}
	}

	texts := p.chunker.Split(page.MarkdownContent)
	if len(texts) == 0 {
		log.Warn("webpage has no content to chunk")
		return 0, nil
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	size := p.cfg.EmbedBatchSize
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch := texts[start:end]

		vectors, err := p.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			log.Warn("embedding batch failed, skipping",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			continue
		}
		if len(vectors) != len(batch) {
			log.Warn("embedding batch returned wrong count, skipping",
				zap.Int("batch_start", start),
				zap.Int("expected", len(batch)),
				zap.Int("got", len(vectors)),
			)
			continue
		}

		for i, text := range batch {
			chunks = append(chunks, domain.Chunk{WebpageID: webpageID, Content: text, Embedding: vectors[i]})
		}
	}

	if len(chunks) == 0 {
		return 0, fmt.Errorf("embed webpage %d: all %d chunks failed", webpageID, len(texts))
	}

	err = p.store.InTx(ctx, func(r Repository) error {
		return r.InsertChunks(ctx, webpageID, chunks)
	})
	if err != nil {
		return 0, err
	}

	log.Info("chunks stored", zap.Int("chunks", len(chunks)), zap.Int("skipped", len(texts)-len(chunks)))
	return len(chunks), nil
}

// Process runs the stages an owner has not completed yet, in order. An owner
// that was interrupted halfway resumes at the first missing stage.
func (p *Pipeline) Process(ctx context.Context, owner domain.Owner) (int, error) {
	pages, err := p.store.WebpagesFor(ctx, owner)
	if err != nil {
		return 0, err
	}

	var page *domain.Webpage
	if len(pages) == 0 {
		if page, err = p.ConvertAndPersistWebpage(ctx, owner); err != nil {
			return 0, err
		}
	} else {
		page = &pages[0]
	}

	extracted, err := p.fieldsExtracted(ctx, owner)
	if err != nil {
		return 0, err
	}
	if !extracted {
		if err := p.ExtractAndApplyFields(ctx, owner); err != nil {
			return 0, err
		}
	}

	chunks, err := p.store.ChunksFor(ctx, page.ID)
	if err != nil {
		return 0, err
	}
	if len(chunks) > 0 {
		return len(chunks), nil
	}
	return p.ChunkAndEmbed(ctx, page.ID)
}

func (p *Pipeline) fieldsExtracted(ctx context.Context, owner domain.Owner) (bool, error) {
	switch owner.Kind {
	case domain.OwnerListing:
		l, err := p.store.GetListing(ctx, owner.ID)
		if err != nil {
			return false, err
		}
		return l.Name != nil || len(l.Labels) > 0, nil
	default:
		c, err := p.store.GetClient(ctx, owner.ID)
		if err != nil {
			return false, err
		}
		return c.BusinessIdentity != nil, nil
	}
}

func (p *Pipeline) stageLogger(stage string, owner domain.Owner) *zap.Logger {
	return logger.WithOwner(p.logger, string(owner.Kind), owner.ID).With(zap.String(logger.FieldStage, stage))
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
