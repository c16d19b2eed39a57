package pipeline

import (
	"context"
	"time"

	"github.com/finsight/finsight/internal/store"
)

// Document is a fully hydrated retrieval result. Exactly one underlying
// record backs each Document; Kind records which table it came from so the
// sentiment stage can tell headlines apart from glossary definitions.
type Document struct {
	Kind       store.Kind
	ID         int64
	Title      string
	Content    string
	URL        string
	Source     string
	Published  time.Time
	Similarity float64
}

// Sentiment is one classified headline. Label is one of negative, neutral
// or positive; MarketImpact is derived from Label at classification time.
type Sentiment struct {
	Title        string
	Label        string
	Confidence   float64
	MarketImpact string
}

// Sentiment labels produced by the classifier.
const (
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
	LabelPositive = "positive"
)

// Market impact phrases derived from sentiment labels.
const (
	ImpactPositive = "potentially positive"
	ImpactNegative = "potentially negative"
	ImpactNeutral  = "neutral"
)

// State carries one question through the pipeline. Each stage reads the
// fields of earlier stages and writes its own; nothing here is shared
// across invocations.
type State struct {
	Question      string
	TaskList      string
	SourceDocs    []Document
	TermsData     []Document
	Sentiments    []Sentiment
	FinalResponse string
}

// Embedder turns text into a vector in the same space the stored documents
// were embedded in.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces free-form text from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Classifier assigns a sentiment label and confidence to a headline.
type Classifier interface {
	Classify(ctx context.Context, text string) (label string, confidence float64, err error)
}

// DocumentSource is the slice of the store the pipeline needs: vector
// search plus per-kind record lookup for hydration.
type DocumentSource interface {
	SearchByEmbedding(ctx context.Context, kind store.Kind, embedding []float32, limit int) ([]store.Hit, error)
	GetNews(ctx context.Context, id int64) (store.NewsItem, error)
	GetGlossaryTerm(ctx context.Context, id int64) (store.GlossaryTerm, error)
	GetAggregatorArticle(ctx context.Context, id int64) (store.AggregatorArticle, error)
}
