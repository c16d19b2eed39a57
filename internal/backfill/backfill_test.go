package backfill

import (
	"context"
	"errors"
	"testing"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

type mockEmbeddingStore struct {
	pending map[store.Kind][]store.Pending
	written map[store.Kind][]int64

	listErr error
	setErr  error
}

func newMockEmbeddingStore() *mockEmbeddingStore {
	return &mockEmbeddingStore{
		pending: make(map[store.Kind][]store.Pending),
		written: make(map[store.Kind][]int64),
	}
}

func (m *mockEmbeddingStore) ListMissingEmbeddings(_ context.Context, kind store.Kind, limit int) ([]store.Pending, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	p := m.pending[kind]
	if len(p) > limit {
		p = p[:limit]
	}
	return p, nil
}

func (m *mockEmbeddingStore) SetEmbedding(_ context.Context, kind store.Kind, id int64, _ []float32) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.written[kind] = append(m.written[kind], id)
	return nil
}

type mockEmbedder struct {
	err     error
	failFor map[string]error
	calls   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.failFor[text]; ok {
		return nil, err
	}
	return []float32{0.1, 0.2}, nil
}

func TestRun_EmbedsAllPending(t *testing.T) {
	st := newMockEmbeddingStore()
	st.pending[store.KindNews] = []store.Pending{
		{Kind: store.KindNews, ID: 1, Text: "Tesla stock surges\nShares rose."},
		{Kind: store.KindNews, ID: 2, Text: "Markets rally\nBroad gains."},
	}
	st.pending[store.KindGlossary] = []store.Pending{
		{Kind: store.KindGlossary, ID: 7, Text: "Stock\nOwnership in a company."},
	}

	b := New(st, &mockEmbedder{}, 0, log.NewNop())
	n, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 embeddings written, got %d", n)
	}
	if len(st.written[store.KindNews]) != 2 || len(st.written[store.KindGlossary]) != 1 {
		t.Errorf("unexpected writes: %+v", st.written)
	}
}

func TestRun_SkipsFailedRecord(t *testing.T) {
	st := newMockEmbeddingStore()
	st.pending[store.KindNews] = []store.Pending{
		{Kind: store.KindNews, ID: 1, Text: "bad"},
		{Kind: store.KindNews, ID: 2, Text: "good"},
	}
	emb := &mockEmbedder{failFor: map[string]error{"bad": errors.New("provider hiccup")}}

	b := New(st, emb, 0, log.NewNop())
	n, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("a single record failure must not abort the pass: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 embedding written, got %d", n)
	}
	if got := st.written[store.KindNews]; len(got) != 1 || got[0] != 2 {
		t.Errorf("expected only record 2 written, got %v", got)
	}
}

func TestRun_ListFailureAborts(t *testing.T) {
	st := newMockEmbeddingStore()
	st.listErr = errors.New("connection refused")

	b := New(st, &mockEmbedder{}, 0, log.NewNop())
	if _, err := b.Run(context.Background()); err == nil {
		t.Fatal("listing failure should abort the pass")
	}
}

func TestRun_Cancellation(t *testing.T) {
	st := newMockEmbeddingStore()
	st.pending[store.KindNews] = []store.Pending{
		{Kind: store.KindNews, ID: 1, Text: "a"},
		{Kind: store.KindNews, ID: 2, Text: "b"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := New(st, &mockEmbedder{}, 0, log.NewNop())
	if _, err := b.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
