// Package store manages the typed content collections backing retrieval:
// news items, social posts, glossary terms, and aggregator articles.
//
// Each collection lives in its own PostgreSQL table with an optional pgvector
// embedding column. The store offers per-kind similarity search (cosine, in
// SQL), per-kind record fetches used to hydrate search hits, URL-deduplicated
// inserts for the ingesters, and the embedding backfill queries.
//
// Embeddings are write-once: SetEmbedding only fills a NULL column and a
// changed source text does not invalidate a stored embedding.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/finsight/finsight/internal/log"
)

// DBTX is the database handle the store operates on. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides access to the content collections.
// Store is safe for concurrent use; PostgreSQL handles concurrent reads.
type Store struct {
	db     DBTX
	logger log.Logger
}

// New creates a Store on the given database handle.
func New(db DBTX, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// SearchByEmbedding scores stored embeddings of one kind against the query
// vector by cosine similarity and returns the top k hits, ordered by
// descending similarity. Records without an embedding are not considered.
func (s *Store) SearchByEmbedding(ctx context.Context, kind Kind, query []float32, k int) ([]Hit, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid record kind %q", kind)
	}
	if k <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", k)
	}

	// Table names come from the Kind enum, never from caller input.
	q := fmt.Sprintf(`
		SELECT id, url, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id
		LIMIT $2`, kind.table())

	rows, err := s.db.Query(ctx, q, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search on %s: %w", kind, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		h := Hit{Kind: kind}
		if err := rows.Scan(&h.ID, &h.URL, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scanning %s hit: %w", kind, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s hits: %w", kind, err)
	}
	return hits, nil
}

// GetNews fetches a news item by id. Returns ErrNotFound if it was deleted.
func (s *Store) GetNews(ctx context.Context, id int64) (NewsItem, error) {
	var (
		n         NewsItem
		published pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, title, content, source, url, published FROM news_items WHERE id = $1`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.Source, &n.URL, &published)
	if err != nil {
		return NewsItem{}, wrapGetErr("news item", id, err)
	}
	if published.Valid {
		n.Published = published.Time
	}
	return n, nil
}

// GetSocialPost fetches a social post by id.
func (s *Store) GetSocialPost(ctx context.Context, id int64) (SocialPost, error) {
	var (
		p      SocialPost
		posted pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, platform, content, url, posted FROM social_posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Platform, &p.Content, &p.URL, &posted)
	if err != nil {
		return SocialPost{}, wrapGetErr("social post", id, err)
	}
	if posted.Valid {
		p.Posted = posted.Time
	}
	return p, nil
}

// GetGlossaryTerm fetches a glossary term by id.
func (s *Store) GetGlossaryTerm(ctx context.Context, id int64) (GlossaryTerm, error) {
	var t GlossaryTerm
	err := s.db.QueryRow(ctx,
		`SELECT id, term, definition, source, url FROM glossary_terms WHERE id = $1`, id,
	).Scan(&t.ID, &t.Term, &t.Definition, &t.Source, &t.URL)
	if err != nil {
		return GlossaryTerm{}, wrapGetErr("glossary term", id, err)
	}
	return t, nil
}

// GetAggregatorArticle fetches an aggregator article by id.
func (s *Store) GetAggregatorArticle(ctx context.Context, id int64) (AggregatorArticle, error) {
	var (
		a         AggregatorArticle
		published pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, title, content, source, url, published FROM aggregator_articles WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Content, &a.Source, &a.URL, &published)
	if err != nil {
		return AggregatorArticle{}, wrapGetErr("aggregator article", id, err)
	}
	if published.Valid {
		a.Published = published.Time
	}
	return a, nil
}

// ListMissingEmbeddings returns up to limit records of the given kind that
// have no embedding yet, each with the text that should be embedded for it.
func (s *Store) ListMissingEmbeddings(ctx context.Context, kind Kind, limit int) ([]Pending, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid record kind %q", kind)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	q := fmt.Sprintf(
		`SELECT id, %s FROM %s WHERE embedding IS NULL ORDER BY id LIMIT $1`,
		kind.embedTextExpr(), kind.table())

	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing %s without embeddings: %w", kind, err)
	}
	defer rows.Close()

	var pending []Pending
	for rows.Next() {
		p := Pending{Kind: kind}
		if err := rows.Scan(&p.ID, &p.Text); err != nil {
			return nil, fmt.Errorf("scanning pending %s: %w", kind, err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pending %s: %w", kind, err)
	}
	return pending, nil
}

// SetEmbedding stores the embedding for a record. Embeddings are immutable
// once set; the update only applies while the column is NULL.
func (s *Store) SetEmbedding(ctx context.Context, kind Kind, id int64, embedding []float32) error {
	if !kind.Valid() {
		return fmt.Errorf("invalid record kind %q", kind)
	}

	q := fmt.Sprintf(`UPDATE %s SET embedding = $1 WHERE id = $2 AND embedding IS NULL`, kind.table())
	tag, err := s.db.Exec(ctx, q, pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("storing embedding for %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Debug("embedding already set or record gone", "kind", kind, "id", id)
	}
	return nil
}

// InsertNews inserts a news item, skipping duplicates by URL.
// Reports whether a row was actually inserted.
func (s *Store) InsertNews(ctx context.Context, n NewsItem) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO news_items (title, content, source, url, published)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO NOTHING`,
		n.Title, n.Content, n.Source, n.URL, nullableTime(n.Published))
	if err != nil {
		return false, fmt.Errorf("inserting news item %q: %w", n.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertSocialPost inserts a social post, skipping duplicates by URL.
func (s *Store) InsertSocialPost(ctx context.Context, p SocialPost) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO social_posts (platform, content, url, posted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO NOTHING`,
		p.Platform, p.Content, p.URL, nullableTime(p.Posted))
	if err != nil {
		return false, fmt.Errorf("inserting social post %q: %w", p.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertGlossaryTerm inserts a glossary term, skipping duplicates by URL.
func (s *Store) InsertGlossaryTerm(ctx context.Context, t GlossaryTerm) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO glossary_terms (term, definition, source, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO NOTHING`,
		t.Term, t.Definition, t.Source, t.URL)
	if err != nil {
		return false, fmt.Errorf("inserting glossary term %q: %w", t.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertAggregatorArticle inserts an aggregator article, skipping duplicates by URL.
func (s *Store) InsertAggregatorArticle(ctx context.Context, a AggregatorArticle) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO aggregator_articles (title, content, source, url, published)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO NOTHING`,
		a.Title, a.Content, a.Source, a.URL, nullableTime(a.Published))
	if err != nil {
		return false, fmt.Errorf("inserting aggregator article %q: %w", a.URL, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListNews returns the most recently published news items.
func (s *Store) ListNews(ctx context.Context, limit int) ([]NewsItem, error) {
	if limit <= 0 || limit > 1000 {
		return nil, fmt.Errorf("limit must be between 1 and 1000, got %d", limit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, title, content, source, url, published
		FROM news_items
		ORDER BY published DESC NULLS LAST, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		var (
			n         NewsItem
			published pgtype.Timestamptz
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Source, &n.URL, &published); err != nil {
			return nil, fmt.Errorf("scanning news item: %w", err)
		}
		if published.Valid {
			n.Published = published.Time
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading news items: %w", err)
	}
	return items, nil
}

// ListGlossaryTerms returns glossary terms in alphabetical order.
func (s *Store) ListGlossaryTerms(ctx context.Context, limit int) ([]GlossaryTerm, error) {
	if limit <= 0 || limit > 1000 {
		return nil, fmt.Errorf("limit must be between 1 and 1000, got %d", limit)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, term, definition, source, url
		FROM glossary_terms
		ORDER BY term, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing glossary terms: %w", err)
	}
	defer rows.Close()

	var terms []GlossaryTerm
	for rows.Next() {
		var t GlossaryTerm
		if err := rows.Scan(&t.ID, &t.Term, &t.Definition, &t.Source, &t.URL); err != nil {
			return nil, fmt.Errorf("scanning glossary term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading glossary terms: %w", err)
	}
	return terms, nil
}

func wrapGetErr(what string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("fetching %s %d: %w", what, id, err)
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
