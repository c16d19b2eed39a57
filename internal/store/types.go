package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
// Callers hydrating similarity hits check this to drop stale hits.
var ErrNotFound = errors.New("record not found")

// Kind identifies one of the four content record collections.
// Hydration and embedding-text extraction dispatch on Kind explicitly;
// there is no reflection over record types.
type Kind string

const (
	KindNews       Kind = "news"
	KindSocial     Kind = "social"
	KindGlossary   Kind = "glossary"
	KindAggregator Kind = "aggregator"
)

// Kinds lists all record kinds in a fixed order.
var Kinds = []Kind{KindNews, KindSocial, KindGlossary, KindAggregator}

// Valid reports whether k is a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNews, KindSocial, KindGlossary, KindAggregator:
		return true
	}
	return false
}

// table returns the backing table name for the kind.
func (k Kind) table() string {
	switch k {
	case KindNews:
		return "news_items"
	case KindSocial:
		return "social_posts"
	case KindGlossary:
		return "glossary_terms"
	case KindAggregator:
		return "aggregator_articles"
	}
	return ""
}

// embedTextExpr returns the SQL expression producing the text to embed for
// records of this kind. It mirrors the per-variant payloads: title+content
// for articles, bare content for social posts, term+definition for glossary
// entries.
func (k Kind) embedTextExpr() string {
	switch k {
	case KindSocial:
		return "content"
	case KindGlossary:
		return "term || E'\\n' || definition"
	default: // news, aggregator
		return "title || E'\\n' || content"
	}
}

// NewsItem is a scraped news article.
type NewsItem struct {
	ID        int64
	Title     string
	Content   string
	Source    string
	URL       string
	Published time.Time
}

// SocialPost is a scraped social media post.
type SocialPost struct {
	ID       int64
	Platform string
	Content  string
	URL      string
	Posted   time.Time
}

// GlossaryTerm is a financial term with its definition.
type GlossaryTerm struct {
	ID         int64
	Term       string
	Definition string
	Source     string
	URL        string
}

// AggregatorArticle is an article pulled from a news aggregator page.
type AggregatorArticle struct {
	ID        int64
	Title     string
	Content   string
	Source    string
	URL       string
	Published time.Time
}

// Hit is a raw similarity-search result, pre-hydration. It is transient and
// never persisted.
type Hit struct {
	Kind       Kind
	ID         int64
	URL        string
	Similarity float64
}

// Pending identifies a record that has no embedding yet, together with the
// text that should be embedded for it.
type Pending struct {
	Kind Kind
	ID   int64
	Text string
}
