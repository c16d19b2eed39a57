package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func groundedState() *State {
	published := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	return &State{
		Question: "How did Tesla stock perform?",
		TaskList: "1. Review recent Tesla news.",
		SourceDocs: []Document{
			{Title: "Tesla stock surges", Content: "Shares rose sharply.", Source: "Yahoo Finance", URL: "http://news.test/tesla", Published: published},
			{Title: "Analysts cautious on Tesla", Content: "Some analysts warn of volatility.", Source: "CNBC", URL: "http://news.test/cautious", Published: published},
		},
		TermsData: []Document{
			{Title: "Stock", Content: "A stock represents ownership.", Source: "Investopedia", URL: "http://gloss.test/stock"},
		},
	}
}

func TestCompose_GroundedPath(t *testing.T) {
	gen := &mockGenerator{responses: []string{
		"Tesla shares rose sharply [1], though some analysts remain cautious [2]. A stock represents ownership [3].",
	}}
	p := newTestPipeline(nil, gen, nil)

	state := groundedState()
	if err := p.compose(context.Background(), state); err != nil {
		t.Fatalf("compose: %v", err)
	}

	want := "Tesla shares rose sharply [1], though some analysts remain cautious [2]. A stock represents ownership [3]." +
		"\n\nSources:\n" +
		"[1] Tesla stock surges (http://news.test/tesla)\n" +
		"[2] Analysts cautious on Tesla (http://news.test/cautious)\n" +
		"[3] Stock (http://gloss.test/stock)"
	if state.FinalResponse != want {
		t.Errorf("final response mismatch:\ngot:  %q\nwant: %q", state.FinalResponse, want)
	}

	// The prompt must carry both context blocks with continued numbering.
	prompt := gen.calls[0].prompt
	for _, marker := range []string{"[1] Tesla stock surges", "[2] Analysts cautious on Tesla", "[3] Stock"} {
		if !strings.Contains(prompt, marker) {
			t.Errorf("prompt missing context entry %q", marker)
		}
	}
}

func TestCompose_OnlyCitedSourcesListed(t *testing.T) {
	// The model cites [1] and an out-of-range [99]; only [1] gets a line.
	gen := &mockGenerator{responses: []string{"Tesla rose [1]. Unrelated claim [99]."}}
	p := newTestPipeline(nil, gen, nil)

	state := groundedState()
	if err := p.compose(context.Background(), state); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if !strings.Contains(state.FinalResponse, "[1] Tesla stock surges (http://news.test/tesla)") {
		t.Errorf("cited source missing: %q", state.FinalResponse)
	}
	if strings.Contains(state.FinalResponse, "[2] Analysts") || strings.Contains(state.FinalResponse, "[3] Stock") {
		t.Errorf("uncited sources listed: %q", state.FinalResponse)
	}
	if strings.Contains(state.FinalResponse, "[99]"+" ") {
		t.Errorf("out-of-range citation produced a source line: %q", state.FinalResponse)
	}
}

func TestCompose_NoCitations(t *testing.T) {
	// Context was provided but the model chose not to cite; the sources
	// block is omitted entirely.
	gen := &mockGenerator{responses: []string{"Tesla had a strong week overall."}}
	p := newTestPipeline(nil, gen, nil)

	state := groundedState()
	if err := p.compose(context.Background(), state); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if strings.Contains(state.FinalResponse, "Sources:") {
		t.Errorf("uncited answer must not carry a sources block: %q", state.FinalResponse)
	}
	if state.FinalResponse != "Tesla had a strong week overall." {
		t.Errorf("unexpected response: %q", state.FinalResponse)
	}
}

func TestCompose_ZeroContext(t *testing.T) {
	gen := &mockGenerator{responses: []string{"From general knowledge: a bond is debt."}}
	p := newTestPipeline(nil, gen, nil)

	state := &State{Question: "What is a bond?"}
	if err := p.compose(context.Background(), state); err != nil {
		t.Fatalf("compose: %v", err)
	}

	if state.FinalResponse != "From general knowledge: a bond is debt." {
		t.Errorf("zero-context output must be the raw generation, got %q", state.FinalResponse)
	}
	if gen.calls[0].system != zeroContextSystem {
		t.Errorf("expected zero-context system instruction, got %q", gen.calls[0].system)
	}
	if strings.Contains(gen.calls[0].prompt, "Context") {
		t.Errorf("zero-context prompt must not include context blocks: %q", gen.calls[0].prompt)
	}
}

func TestFormatDocuments(t *testing.T) {
	published := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{Title: "Markets rally", Content: strings.Repeat("a", contentBudget+50), Source: "CNBC", Published: published},
		{Title: "", Content: "short", Source: "X"},
	}

	got := formatDocuments(docs, 3)

	if !strings.Contains(got, "[3] Markets rally\nSource: CNBC  Date: 2026-08-01\n") {
		t.Errorf("first block malformed:\n%s", got)
	}
	if !strings.Contains(got, "[4] Untitled\nSource: X  Date: \nshort\n") {
		t.Errorf("untitled block malformed:\n%s", got)
	}
	if strings.Contains(got, strings.Repeat("a", contentBudget+1)) {
		t.Errorf("content not truncated to %d chars", contentBudget)
	}
	if !strings.Contains(got, strings.Repeat("a", contentBudget)) {
		t.Errorf("content truncated below %d chars", contentBudget)
	}
}

func TestFormatDocuments_TruncatesOnRuneBoundary(t *testing.T) {
	docs := []Document{
		{Title: "円相場", Content: strings.Repeat("円", contentBudget+10), Source: "Nikkei"},
	}

	got := formatDocuments(docs, 1)

	if !utf8.ValidString(got) {
		t.Fatalf("formatted block contains invalid UTF-8:\n%s", got)
	}
	if !strings.Contains(got, strings.Repeat("円", contentBudget)) {
		t.Errorf("content truncated below %d runes", contentBudget)
	}
	if strings.Contains(got, strings.Repeat("円", contentBudget+1)) {
		t.Errorf("content not truncated to %d runes", contentBudget)
	}
}

func TestFormatDocuments_Empty(t *testing.T) {
	if got := formatDocuments(nil, 1); got != "None" {
		t.Errorf("empty document list should render as %q, got %q", "None", got)
	}
}

func TestCitedNumbers(t *testing.T) {
	cited := citedNumbers("First point [1]. Second [2] and again [1]. Bracketed text [notanumber].")

	if len(cited) != 2 || !cited[1] || !cited[2] {
		t.Errorf("unexpected cited set: %v", cited)
	}
}
