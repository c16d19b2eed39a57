package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/finsight/finsight/internal/store"
)

// retrieve embeds the question once, similarity-searches the general and
// definitional groups, hydrates the hits, and keyword-filters the results.
// Empty results are a valid outcome, not an error.
func (p *Pipeline) retrieve(ctx context.Context, state *State) error {
	embedding, err := p.embedder.Embed(ctx, state.Question)
	if err != nil {
		return fmt.Errorf("embedding question: %w", err)
	}
	keywords := questionKeywords(state.Question)

	// General group: news and aggregator articles, merged by descending
	// similarity and capped at the same K as a single-table search.
	newsHits, err := p.source.SearchByEmbedding(ctx, store.KindNews, embedding, topK)
	if err != nil {
		return fmt.Errorf("searching news: %w", err)
	}
	aggHits, err := p.source.SearchByEmbedding(ctx, store.KindAggregator, embedding, topK)
	if err != nil {
		return fmt.Errorf("searching aggregator articles: %w", err)
	}
	general, err := p.hydrateAll(ctx, mergeBySimilarity(newsHits, aggHits, topK))
	if err != nil {
		return err
	}

	termHits, err := p.source.SearchByEmbedding(ctx, store.KindGlossary, embedding, topK)
	if err != nil {
		return fmt.Errorf("searching glossary terms: %w", err)
	}
	terms, err := p.hydrateAll(ctx, termHits)
	if err != nil {
		return err
	}

	state.SourceDocs = keywordFilter(general, keywords)
	state.TermsData = keywordFilter(terms, keywords)

	p.logger.Info("retrieval complete",
		"general_raw", len(general), "general_kept", len(state.SourceDocs),
		"terms_raw", len(terms), "terms_kept", len(state.TermsData))
	return nil
}

// questionKeywords lowercases the whitespace-delimited tokens of the
// question, strips surrounding punctuation, and keeps tokens longer than
// two runes. Without the trim, "stock?" would never substring-match a
// stored document. No stopword removal or stemming is applied.
func questionKeywords(question string) []string {
	var kw []string
	for _, tok := range strings.Fields(question) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if utf8.RuneCountInString(tok) > 2 {
			kw = append(kw, strings.ToLower(tok))
		}
	}
	return kw
}

// keywordFilter keeps documents whose title, content or definition text
// contains at least one keyword as a case-insensitive substring. Input
// order is preserved; with no keywords nothing survives.
func keywordFilter(docs []Document, keywords []string) []Document {
	var kept []Document
	for _, d := range docs {
		blob := strings.ToLower(d.Title + " " + d.Content)
		for _, k := range keywords {
			if strings.Contains(blob, k) {
				kept = append(kept, d)
				break
			}
		}
	}
	return kept
}

// hydrateAll expands hits into full documents. A hit whose backing record
// no longer exists is dropped silently; any other store failure propagates.
func (p *Pipeline) hydrateAll(ctx context.Context, hits []store.Hit) ([]Document, error) {
	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		doc, err := p.hydrate(ctx, h)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("dropping stale hit", "kind", h.Kind, "id", h.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hydrating %s/%d: %w", h.Kind, h.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *Pipeline) hydrate(ctx context.Context, h store.Hit) (Document, error) {
	switch h.Kind {
	case store.KindNews:
		rec, err := p.source.GetNews(ctx, h.ID)
		if err != nil {
			return Document{}, err
		}
		return Document{
			Kind: h.Kind, ID: rec.ID,
			Title: rec.Title, Content: rec.Content,
			Source: rec.Source, URL: rec.URL,
			Published: rec.Published, Similarity: h.Similarity,
		}, nil
	case store.KindAggregator:
		rec, err := p.source.GetAggregatorArticle(ctx, h.ID)
		if err != nil {
			return Document{}, err
		}
		return Document{
			Kind: h.Kind, ID: rec.ID,
			Title: rec.Title, Content: rec.Content,
			Source: rec.Source, URL: rec.URL,
			Published: rec.Published, Similarity: h.Similarity,
		}, nil
	case store.KindGlossary:
		rec, err := p.source.GetGlossaryTerm(ctx, h.ID)
		if err != nil {
			return Document{}, err
		}
		return Document{
			Kind: h.Kind, ID: rec.ID,
			Title: rec.Term, Content: rec.Definition,
			Source: rec.Source, URL: rec.URL,
			Similarity: h.Similarity,
		}, nil
	default:
		return Document{}, fmt.Errorf("unsupported record kind %q", h.Kind)
	}
}

// mergeBySimilarity merges two descending-similarity hit lists into one
// descending list of at most k entries. On equal similarity the first
// list's hit wins, which keeps the merge deterministic.
func mergeBySimilarity(a, b []store.Hit, k int) []store.Hit {
	merged := make([]store.Hit, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Similarity >= b[j].Similarity {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}
