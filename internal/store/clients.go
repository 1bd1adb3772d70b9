package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

const clientColumns = `id, name, website, business_identity, audience_desc`

// CreateClient stores a client. website must be an absolute http(s) URL.
func (r *Repo) CreateClient(ctx context.Context, name, website string) (*domain.Client, error) {
	website, err := domain.NormalizeWebsite(website)
	if err != nil {
		return nil, err
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO client (name, website) VALUES ($1, $2) RETURNING `+clientColumns,
		name, website,
	)
	c, err := scanClient(row)
	if err != nil {
		return nil, fmt.Errorf("create client %q: %w", name, err)
	}
	return c, nil
}

func (r *Repo) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM client WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get client %d", id))
	}
	return c, nil
}

func (r *Repo) GetClientByName(ctx context.Context, name string) (*domain.Client, error) {
	c, err := scanClient(r.q.QueryRow(ctx, `SELECT `+clientColumns+` FROM client WHERE name = $1`, name))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get client %q", name))
	}
	return c, nil
}

// ListClients returns all clients, or only those without a webpage when unparsed is set.
func (r *Repo) ListClients(ctx context.Context, unparsed bool) ([]domain.Client, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+clientColumns+` FROM client c
		 WHERE NOT $1::boolean OR NOT EXISTS (
		     SELECT 1 FROM webpage w WHERE w.owner_type = 'client' AND w.owner_id = c.id)
		 ORDER BY id`,
		unparsed,
	)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Client, error) {
		c, err := scanClient(row)
		if err != nil {
			return domain.Client{}, err
		}
		return *c, nil
	})
}

func (r *Repo) UpdateClientFields(ctx context.Context, c *domain.Client) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE client SET business_identity = $2, audience_desc = $3 WHERE id = $1`,
		c.ID, c.BusinessIdentity, c.AudienceDesc,
	)
	if err != nil {
		return fmt.Errorf("update client %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update client %d: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Website, &c.BusinessIdentity, &c.AudienceDesc); err != nil {
		return nil, err
	}
	return &c, nil
}
