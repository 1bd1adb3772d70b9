package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

const listingColumns = `
	l.id, l.provider_id, l.website, l.is_open, l.opens_at, l.closes_at, l.last_checked,
	l.name, l.financial_instrument, l.target_audience_desc,
	COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')`

const listingFrom = `
	FROM listing l
	LEFT JOIN listing_target_audience lt ON lt.listing_id = l.id
	LEFT JOIN target_audience_label t ON t.id = lt.label_id`

// EnsureProvider inserts the provider or refreshes its website, returning the stored row.
func (r *Repo) EnsureProvider(ctx context.Context, name, website string) (*domain.Provider, error) {
	var p domain.Provider
	err := r.q.QueryRow(ctx,
		`INSERT INTO provider (name, website) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET website = EXCLUDED.website
		 RETURNING id, name, website`,
		name, website,
	).Scan(&p.ID, &p.Name, &p.Website)
	if err != nil {
		return nil, fmt.Errorf("ensure provider %q: %w", name, err)
	}
	return &p, nil
}

func (r *Repo) GetProviderByName(ctx context.Context, name string) (*domain.Provider, error) {
	var p domain.Provider
	err := r.q.QueryRow(ctx, `SELECT id, name, website FROM provider WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.Website)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get provider %q", name))
	}
	return &p, nil
}

// CreateListingIfMissing inserts a bare listing. It reports false when the
// provider already has a listing for website.
func (r *Repo) CreateListingIfMissing(ctx context.Context, providerID int64, website string) (bool, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO listing (provider_id, website) VALUES ($1, $2)
		 ON CONFLICT (provider_id, website) DO NOTHING
		 RETURNING id`,
		providerID, website,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create listing %s: %w", website, err)
	}
	return true, nil
}

func (r *Repo) GetListing(ctx context.Context, id int64) (*domain.Listing, error) {
	row := r.q.QueryRow(ctx, `SELECT `+listingColumns+listingFrom+` WHERE l.id = $1 GROUP BY l.id`, id)
	l, err := scanListing(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get listing %d", id))
	}
	return l, nil
}

func (r *Repo) GetListingByURL(ctx context.Context, website string) (*domain.Listing, error) {
	row := r.q.QueryRow(ctx, `SELECT `+listingColumns+listingFrom+` WHERE l.website = $1 GROUP BY l.id ORDER BY l.id LIMIT 1`, website)
	l, err := scanListing(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get listing %s", website))
	}
	return l, nil
}

// ListListings returns listings matching filter, ordered by id.
func (r *Repo) ListListings(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	query := `SELECT ` + listingColumns + listingFrom + `
	WHERE ($1::bigint = 0 OR l.provider_id = $1::bigint)
	  AND (NOT $2::boolean OR NOT EXISTS (
	        SELECT 1 FROM webpage w WHERE w.owner_type = 'listing' AND w.owner_id = l.id))
	GROUP BY l.id
	ORDER BY l.id`

	rows, err := r.q.Query(ctx, query, filter.ProviderID, filter.Unparsed)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// UpdateListingFields stores the extracted fields of l. Labels are not touched.
func (r *Repo) UpdateListingFields(ctx context.Context, l *domain.Listing) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE listing SET is_open = $2, opens_at = $3, closes_at = $4, last_checked = $5,
		        name = $6, financial_instrument = $7, target_audience_desc = $8
		 WHERE id = $1`,
		l.ID, l.IsOpen, l.OpensAt, l.ClosesAt, l.LastChecked, l.Name, l.FinancialInstrument, l.TargetAudienceDesc,
	)
	if err != nil {
		return fmt.Errorf("update listing %d: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update listing %d: %w", l.ID, domain.ErrNotFound)
	}
	return nil
}

// AttachLabels makes sure every label exists, then links them to the listing.
// Duplicate names collapse onto one label.
func (r *Repo) AttachLabels(ctx context.Context, listingID int64, names []string) ([]domain.TargetAudienceLabel, error) {
	if len(names) == 0 {
		return nil, nil
	}

	batch := &pgx.Batch{}
	for _, name := range names {
		batch.Queue(`INSERT INTO target_audience_label (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("insert labels: %w", err)
	}

	rows, err := r.q.Query(ctx, `SELECT id, name FROM target_audience_label WHERE name = ANY($1) ORDER BY name`, names)
	if err != nil {
		return nil, fmt.Errorf("select labels: %w", err)
	}
	labels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TargetAudienceLabel, error) {
		var l domain.TargetAudienceLabel
		err := row.Scan(&l.ID, &l.Name)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan labels: %w", err)
	}

	ids := make([]int64, len(labels))
	for i, l := range labels {
		ids[i] = l.ID
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO listing_target_audience (listing_id, label_id)
		 SELECT $1, unnest($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		listingID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("associate labels with listing %d: %w", listingID, err)
	}

	return labels, nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.ProviderID, &l.Website, &l.IsOpen, &l.OpensAt, &l.ClosesAt, &l.LastChecked,
		&l.Name, &l.FinancialInstrument, &l.TargetAudienceDesc, &l.Labels,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
