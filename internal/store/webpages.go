package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

// WebpagesFor returns the webpages of owner, oldest first.
func (r *Repo) WebpagesFor(ctx context.Context, owner domain.Owner) ([]domain.Webpage, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, owner_type, owner_id, url, original_content, filtered_content, markdown_content
		 FROM webpage WHERE owner_type = $1 AND owner_id = $2 ORDER BY id`,
		string(owner.Kind), owner.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webpages for %s: %w", owner, err)
	}
	return pgx.CollectRows(rows, scanWebpage)
}

func (r *Repo) GetWebpage(ctx context.Context, id int64) (*domain.Webpage, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, owner_type, owner_id, url, original_content, filtered_content, markdown_content
		 FROM webpage WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get webpage %d: %w", id, err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, scanWebpage)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("get webpage %d", id))
	}
	return &w, nil
}

// InsertWebpage stores w and sets its ID.
func (r *Repo) InsertWebpage(ctx context.Context, w *domain.Webpage) error {
	if err := w.Owner.Validate(); err != nil {
		return err
	}
	err := r.q.QueryRow(ctx,
		`INSERT INTO webpage (owner_type, owner_id, url, original_content, filtered_content, markdown_content)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		string(w.Owner.Kind), w.Owner.ID, w.URL, w.OriginalContent, w.FilteredContent, w.MarkdownContent,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("insert webpage for %s: %w", w.Owner, err)
	}
	return nil
}

// InsertChunks appends chunks to webpageID in one batch.
func (r *Repo) InsertChunks(ctx context.Context, webpageID int64, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO chunk (owner_type, owner_id, content, embedding) VALUES ($1, $2, $3, $4)`,
			domain.ChunkOwnerWebpage, webpageID, c.Content, pgvector.NewVector(c.Embedding),
		)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %d chunks for webpage %d: %w", len(chunks), webpageID, err)
	}
	return nil
}

// ChunksFor returns the chunks of a webpage in insertion order.
func (r *Repo) ChunksFor(ctx context.Context, webpageID int64) ([]domain.Chunk, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, owner_id, content, embedding FROM chunk
		 WHERE owner_type = $1 AND owner_id = $2 ORDER BY id`,
		domain.ChunkOwnerWebpage, webpageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks for webpage %d: %w", webpageID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Chunk, error) {
		var (
			c   domain.Chunk
			vec pgvector.Vector
		)
		if err := row.Scan(&c.ID, &c.WebpageID, &c.Content, &vec); err != nil {
			return c, err
		}
		c.Embedding = vec.Slice()
		return c, nil
	})
}

const searchSelect = `
	SELECT c.content, w.url, 1 - (c.embedding <=> $1) AS similarity
	FROM chunk c
	JOIN webpage w ON c.owner_type = 'webpage' AND c.owner_id = w.id`

// SearchChunks ranks the chunks reachable from scope by cosine similarity to
// query. Chunks of other owners are never returned.
func (r *Repo) SearchChunks(ctx context.Context, scope domain.Scope, query []float32, limit int) ([]domain.SearchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		join  string
		where string
		arg   any
	)
	switch scope.Kind {
	case domain.OwnerListing:
		join = ` JOIN listing o ON w.owner_type = 'listing' AND w.owner_id = o.id`
		if scope.ID > 0 {
			where, arg = ` WHERE o.id = $2`, scope.ID
		} else {
			where, arg = ` WHERE o.website = $2`, scope.Key
		}
	case domain.OwnerClient:
		join = ` JOIN client o ON w.owner_type = 'client' AND w.owner_id = o.id`
		if scope.ID > 0 {
			where, arg = ` WHERE o.id = $2`, scope.ID
		} else {
			where, arg = ` WHERE o.name = $2`, scope.Key
		}
	default:
		return nil, fmt.Errorf("search: unsupported scope %s", scope)
	}

	sql := searchSelect + join + where + ` ORDER BY c.embedding <=> $1 LIMIT $3`
	rows, err := r.q.Query(ctx, sql, pgvector.NewVector(query), arg, limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", scope, err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SearchResult, error) {
		var res domain.SearchResult
		err := row.Scan(&res.Content, &res.URL, &res.Similarity)
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan search results for %s: %w", scope, err)
	}
	return results, nil
}

func scanWebpage(row pgx.CollectableRow) (domain.Webpage, error) {
	var (
		w    domain.Webpage
		kind string
	)
	err := row.Scan(&w.ID, &kind, &w.Owner.ID, &w.URL, &w.OriginalContent, &w.FilteredContent, &w.MarkdownContent)
	w.Owner.Kind = domain.OwnerKind(kind)
	return w, err
}
