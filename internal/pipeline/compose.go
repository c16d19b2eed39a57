package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// contentBudget caps the per-document text shown to the model.
const contentBudget = 600

// sourcesSeparator is the literal marker between the answer body and the
// source list. The HTTP layer splits on it for display, so it must not
// change.
const sourcesSeparator = "\n\nSources:\n"

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

const zeroContextSystem = "You are a helpful financial assistant. " +
	"Answer the question from your own knowledge."

const groundedSystem = `You are a financial advisor assistant who specializes in providing accurate, up-to-date information about financial markets, investments, and economic topics.

GUIDELINES:
1. Use the Context information whenever possible and cite sources with [n] notation.
2. Include ONLY factual information from the provided context.
3. When citing, use the exact number from the context (e.g., [1], [2]) at the end of sentences that use that information.
4. If the Context is insufficient, you may supplement with your general knowledge but clearly mark these additions with "(general knowledge)".
5. Prioritize recent news over older information.
6. Provide balanced perspectives when there are conflicting viewpoints.
7. For financial terms, use definitions from the glossary when available.
8. When explaining complex concepts, break them down into simple terms.`

// compose produces the final answer. With no retrieved context it falls
// back to plain generation and returns the model output untouched.
// Otherwise it formats numbered context blocks, generates a grounded
// answer, and appends a source list restricted to the citations the model
// actually used.
func (p *Pipeline) compose(ctx context.Context, state *State) error {
	if len(state.SourceDocs) == 0 && len(state.TermsData) == 0 {
		answer, err := p.generator.Generate(ctx, zeroContextSystem,
			fmt.Sprintf("Question: %s", state.Question))
		if err != nil {
			return fmt.Errorf("zero-context generation: %w", err)
		}
		state.FinalResponse = answer
		return nil
	}

	// Numbering runs through SourceDocs first, then continues into
	// TermsData, matching the concatenation used for the source list.
	docsBlock := formatDocuments(state.SourceDocs, 1)
	termsBlock := formatDocuments(state.TermsData, len(state.SourceDocs)+1)

	prompt := fmt.Sprintf(`USER QUESTION:
%s

Tasks identified:
%s

=== Context: News & Articles ===
%s

=== Context: Glossary ===
%s

Sentiment of retrieved headlines:
%s`,
		state.Question,
		state.TaskList,
		docsBlock,
		termsBlock,
		formatSentiments(state.Sentiments))

	answer, err := p.generator.Generate(ctx, groundedSystem, prompt)
	if err != nil {
		return fmt.Errorf("grounded generation: %w", err)
	}

	cited := citedNumbers(answer)
	lines := sourceLines(append(append([]Document{}, state.SourceDocs...), state.TermsData...), cited)

	state.FinalResponse = strings.TrimSpace(answer)
	if len(lines) > 0 {
		state.FinalResponse += sourcesSeparator + strings.Join(lines, "\n")
	}
	return nil
}

// formatDocuments renders documents as numbered context blocks starting at
// the given number. Content is truncated to a fixed character budget.
func formatDocuments(docs []Document, start int) string {
	if len(docs) == 0 {
		return "None"
	}
	blocks := make([]string, 0, len(docs))
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = "Untitled"
		}
		content := truncateRunes(d.Content, contentBudget)
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nSource: %s  Date: %s\n%s\n",
			start+i, title, d.Source, formatDate(d.Published), content))
	}
	return strings.Join(blocks, "\n")
}

func formatSentiments(sentiments []Sentiment) string {
	if len(sentiments) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(sentiments))
	for _, s := range sentiments {
		lines = append(lines, fmt.Sprintf("- %s: %s (%.2f), market impact %s",
			s.Title, s.Label, s.Confidence, s.MarketImpact))
	}
	return strings.Join(lines, "\n")
}

// citedNumbers extracts the set of distinct [n] markers from the answer.
func citedNumbers(answer string) map[int]bool {
	cited := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			cited[n] = true
		}
	}
	return cited
}

// sourceLines renders one line per cited document, in document order. A
// citation pointing outside the document range produces no line.
func sourceLines(docs []Document, cited map[int]bool) []string {
	var lines []string
	for i, d := range docs {
		if !cited[i+1] {
			continue
		}
		title := d.Title
		if title == "" {
			title = "Untitled"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s (%s)", i+1, title, d.URL))
	}
	return lines
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
