// Package ingest acquires content for the document store: RSS/Atom news
// feeds, aggregator article pages, and glossary definitions. Every ingestor
// writes through the store's URL-deduplicated inserts, so repeated runs are
// idempotent and only report genuinely new records.
package ingest

import (
	"context"

	"github.com/finsight/finsight/internal/store"
)

// ContentWriter is the slice of the store the ingestors write through.
// Inserts report whether the record was new; a URL collision is not an
// error.
type ContentWriter interface {
	InsertNews(ctx context.Context, n store.NewsItem) (bool, error)
	InsertSocialPost(ctx context.Context, p store.SocialPost) (bool, error)
	InsertGlossaryTerm(ctx context.Context, t store.GlossaryTerm) (bool, error)
	InsertAggregatorArticle(ctx context.Context, a store.AggregatorArticle) (bool, error)
}
