package pipeline

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/finsight/finsight/internal/log"
)

const (
	// topK caps each similarity-search group before filtering.
	topK = 25

	// errSnippetLen bounds the raw error fragment shown to users.
	errSnippetLen = 100
)

// Pipeline sequences the question-answering stages over injected
// capabilities. A Pipeline is safe for concurrent use; every invocation
// gets its own State.
type Pipeline struct {
	source     DocumentSource
	embedder   Embedder
	generator  Generator
	classifier Classifier
	logger     log.Logger
}

// New constructs a Pipeline. All dependencies are required.
func New(source DocumentSource, embedder Embedder, generator Generator, classifier Classifier, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		source:     source,
		embedder:   embedder,
		generator:  generator,
		classifier: classifier,
		logger:     logger,
	}
}

// ProcessQuestion runs the full pipeline for one question and always
// returns a displayable string. Stage errors and panics never escape;
// they are converted into a fixed apology carrying a truncated error
// fragment.
func (p *Pipeline) ProcessQuestion(ctx context.Context, question string) string {
	state := &State{Question: question}

	answer, err := p.run(ctx, state)
	if err != nil {
		p.logger.Error("pipeline failed", "question", question, "error", err)
		return apology(err)
	}
	return answer
}

func (p *Pipeline) run(ctx context.Context, state *State) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	type stage struct {
		name string
		fn   func(context.Context, *State) error
	}
	stages := []stage{
		{"decompose", p.decompose},
		{"retrieve", p.retrieve},
		{"sentiment", p.scoreSentiment},
		{"compose", p.compose},
	}

	for _, s := range stages {
		// Cancellation is honored at stage boundaries, never mid-call.
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", s.name, err)
		}
		if err := s.fn(ctx, state); err != nil {
			return "", fmt.Errorf("%s: %w", s.name, err)
		}
		p.logger.Debug("stage complete", "stage", s.name,
			"source_docs", len(state.SourceDocs), "terms", len(state.TermsData))
	}
	return state.FinalResponse, nil
}

func apology(err error) string {
	msg := truncateRunes(err.Error(), errSnippetLen)
	return "I'm sorry, I encountered an error while processing your question. " +
		"Please try again with a different query related to finance. " +
		"Error details: " + msg + "..."
}

// truncateRunes caps s at max runes. Slicing by byte could split a
// multi-byte rune and leak invalid UTF-8 into user-facing text.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
