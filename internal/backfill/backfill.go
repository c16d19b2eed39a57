// Package backfill computes embeddings for stored records that lack one.
// Records enter the store without embeddings; a backfill pass walks every
// collection, embeds the missing records' text, and writes the vectors
// back. Embeddings are write-once, so a concurrent or repeated pass is
// harmless.
package backfill

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

// batchSize bounds how many pending records one pass pulls per kind.
const batchSize = 500

// Embedder turns text into a vector. Mirrors the pipeline's contract.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingStore is the slice of the store the backfiller needs.
type EmbeddingStore interface {
	ListMissingEmbeddings(ctx context.Context, kind store.Kind, limit int) ([]store.Pending, error)
	SetEmbedding(ctx context.Context, kind store.Kind, id int64, embedding []float32) error
}

// Backfiller embeds records that have no stored embedding yet. Calls to
// the embedding provider are rate limited so a large backlog does not
// exhaust the provider quota.
type Backfiller struct {
	store    EmbeddingStore
	embedder Embedder
	limiter  *rate.Limiter
	logger   log.Logger
}

// New constructs a Backfiller. perSecond caps embedding calls per second;
// zero or negative disables limiting.
func New(st EmbeddingStore, embedder Embedder, perSecond float64, logger log.Logger) *Backfiller {
	if logger == nil {
		logger = log.NewNop()
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Backfiller{
		store:    st,
		embedder: embedder,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Run performs one backfill pass over every record kind and returns the
// number of embeddings written. A single record's failure is logged and
// skipped; the pass aborts only on context cancellation or when listing
// pending records fails.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range store.Kinds {
		n, err := b.runKind(ctx, kind)
		total += n
		if err != nil {
			return total, fmt.Errorf("backfill %s: %w", kind, err)
		}
	}
	b.logger.Info("backfill pass complete", "embedded", total)
	return total, nil
}

// Refresh runs one backfill pass, discarding the count. It satisfies the
// Refresher contract so the supervisor can schedule the backfiller
// alongside the ingestors.
func (b *Backfiller) Refresh(ctx context.Context) error {
	_, err := b.Run(ctx)
	return err
}

func (b *Backfiller) runKind(ctx context.Context, kind store.Kind) (int, error) {
	pending, err := b.store.ListMissingEmbeddings(ctx, kind, batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	done := 0
	for _, p := range pending {
		if err := b.limiter.Wait(ctx); err != nil {
			return done, err
		}
		embedding, err := b.embedder.Embed(ctx, p.Text)
		if err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			b.logger.Warn("embedding failed, skipping record",
				"kind", kind, "id", p.ID, "error", err)
			continue
		}
		if err := b.store.SetEmbedding(ctx, kind, p.ID, embedding); err != nil {
			b.logger.Warn("storing embedding failed, skipping record",
				"kind", kind, "id", p.ID, "error", err)
			continue
		}
		done++
	}

	b.logger.Debug("kind backfilled", "kind", kind, "pending", len(pending), "embedded", done)
	return done, nil
}
