package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

// mockWriter records inserts and deduplicates by URL like the real store.
type mockWriter struct {
	mu       sync.Mutex
	news     []store.NewsItem
	posts    []store.SocialPost
	terms    []store.GlossaryTerm
	articles []store.AggregatorArticle
	urls     map[string]bool

	insertErr error
}

func newMockWriter() *mockWriter {
	return &mockWriter{urls: make(map[string]bool)}
}

func (m *mockWriter) insert(url string) bool {
	if m.urls[url] {
		return false
	}
	m.urls[url] = true
	return true
}

func (m *mockWriter) InsertNews(_ context.Context, n store.NewsItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if !m.insert(n.URL) {
		return false, nil
	}
	m.news = append(m.news, n)
	return true, nil
}

func (m *mockWriter) InsertSocialPost(_ context.Context, p store.SocialPost) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if !m.insert(p.URL) {
		return false, nil
	}
	m.posts = append(m.posts, p)
	return true, nil
}

func (m *mockWriter) InsertGlossaryTerm(_ context.Context, t store.GlossaryTerm) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if !m.insert(t.URL) {
		return false, nil
	}
	m.terms = append(m.terms, t)
	return true, nil
}

func (m *mockWriter) InsertAggregatorArticle(_ context.Context, a store.AggregatorArticle) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if !m.insert(a.URL) {
		return false, nil
	}
	m.articles = append(m.articles, a)
	return true, nil
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Finance Feed</title>
<item>
  <title>Tesla stock surges</title>
  <link>http://news.test/tesla-surges</link>
  <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
  <description>&lt;p&gt;Shares of Tesla rose sharply on earnings.&lt;/p&gt;</description>
</item>
<item>
  <title></title>
  <link>http://news.test/untitled</link>
</item>
<item>
  <title>Markets rally</title>
  <link>http://news.test/markets-rally</link>
  <description>Broad gains across sectors.</description>
</item>
</channel>
</rss>`

func TestFeedFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	writer := newMockWriter()
	f := NewFeedFetcher([]string{srv.URL}, writer, log.NewNop())

	n, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 new items (untitled entry rejected), got %d", n)
	}

	got := writer.news[0]
	if got.Title != "Tesla stock surges" || got.Source != "Test Finance Feed" {
		t.Errorf("unexpected first item: %+v", got)
	}
	if strings.Contains(got.Content, "<p>") {
		t.Errorf("HTML not stripped from content: %q", got.Content)
	}
	if got.Published.IsZero() {
		t.Errorf("pubDate not parsed: %+v", got)
	}
}

func TestFeedFetcher_Rerun_NoDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	writer := newMockWriter()
	f := NewFeedFetcher([]string{srv.URL}, writer, log.NewNop())

	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	n, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n != 0 {
		t.Errorf("repeated fetch should insert nothing new, got %d", n)
	}
}

func TestFeedFetcher_BadFeedSkipped(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer good.Close()

	writer := newMockWriter()
	f := NewFeedFetcher([]string{bad.URL, good.URL}, writer, log.NewNop())

	n, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("a broken feed must not fail the pass: %v", err)
	}
	if n != 2 {
		t.Errorf("expected items from the healthy feed, got %d", n)
	}
}

func TestGlossaryScraper(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/dictionary", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/terms/stock">Stock</a>
			<a href="/terms/bond">Bond</a>
			<a href="/other/page">Other</a>
			<a href="https://external.test/terms/x">External</a>
		</body></html>`))
	})
	mux.HandleFunc("/terms/stock", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><h1>Stock</h1>
			<div class="article-body">A stock represents ownership in a company.</div>
			</body></html>`))
	})
	mux.HandleFunc("/terms/bond", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body><h1>Bond</h1>
			<div class="article-body">A bond is a fixed income instrument.</div>
			</body></html>`))
	})

	writer := newMockWriter()
	g := NewGlossaryScraper(srv.URL+"/dictionary", writer, log.NewNop())

	n, err := g.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 terms, got %d", n)
	}
	if writer.terms[0].Term != "Stock" || !strings.Contains(writer.terms[0].Definition, "ownership") {
		t.Errorf("unexpected term: %+v", writer.terms[0])
	}
	if writer.terms[0].URL != srv.URL+"/terms/stock" {
		t.Errorf("term URL not absolute: %q", writer.terms[0].URL)
	}
}

func TestGlossaryScraper_IndexUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGlossaryScraper(srv.URL, newMockWriter(), log.NewNop())
	if _, err := g.Scrape(context.Background()); err == nil {
		t.Fatal("unreachable index should fail the pass")
	}
}

func TestAggregatorScraper(t *testing.T) {
	articleBody := strings.Repeat("Markets moved on central bank guidance today. ", 10)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/listing", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>
			<a href="/news/markets-rally">Markets rally</a>
			<a href="/about">About us</a>
		</body></html>`))
	})
	mux.HandleFunc("/news/markets-rally", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><head><title>Markets rally on rate guidance</title></head>
			<body><article><h1>Markets rally on rate guidance</h1>
			<p>` + articleBody + `</p></article></body></html>`))
	})

	writer := newMockWriter()
	a := NewAggregatorScraper([]string{srv.URL + "/listing"}, writer, 1, 0, log.NewNop())

	n, err := a.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 article, got %d", n)
	}
	got := writer.articles[0]
	if !strings.Contains(got.Title, "Markets rally") {
		t.Errorf("unexpected title: %q", got.Title)
	}
	if !strings.Contains(got.Content, "central bank guidance") {
		t.Errorf("content not extracted: %q", got.Content)
	}
}

func TestIsArticleLink(t *testing.T) {
	listing, _ := http.NewRequest(http.MethodGet, "http://agg.test/listing", nil)

	tests := []struct {
		link string
		want bool
	}{
		{"http://agg.test/news/story-1", true},
		{"http://agg.test/article/2026/story", true},
		{"http://agg.test/about", false},
		{"http://other.test/news/story-1", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		if got := isArticleLink(tt.link, listing.URL); got != tt.want {
			t.Errorf("isArticleLink(%q) = %v, want %v", tt.link, got, tt.want)
		}
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		if got := stripTags(tt.in); got != tt.want {
			t.Errorf("stripTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const stocksListing = `{
  "data": {
    "children": [
      {"data": {
        "title": "Thoughts on index funds?",
        "selftext": "Considering moving my portfolio into broad index funds.",
        "permalink": "/r/stocks/comments/abc123/thoughts_on_index_funds/",
        "created_utc": 1756300000
      }},
      {"data": {
        "title": "Fed holds rates steady",
        "selftext": "",
        "permalink": "/r/stocks/comments/def456/fed_holds_rates/",
        "created_utc": 1756310000
      }},
      {"data": {
        "title": "",
        "selftext": "deleted post body",
        "permalink": "/r/stocks/comments/ghi789/removed/",
        "created_utc": 1756320000
      }}
    ]
  }
}`

func TestSocialFetcher(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/r/stocks/hot.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("listing request sent without a User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(stocksListing))
	})

	writer := newMockWriter()
	s := NewSocialFetcher([]string{"stocks"}, writer, log.NewNop())
	s.baseURL = srv.URL

	n, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 new posts (untitled entry rejected), got %d", n)
	}

	got := writer.posts[0]
	if got.Platform != "Reddit" {
		t.Errorf("platform = %q, want Reddit", got.Platform)
	}
	if got.URL != "https://reddit.com/r/stocks/comments/abc123/thoughts_on_index_funds/" {
		t.Errorf("unexpected URL: %q", got.URL)
	}
	if got.Content != "Thoughts on index funds?\n\nConsidering moving my portfolio into broad index funds." {
		t.Errorf("unexpected content: %q", got.Content)
	}
	if got.Posted.Unix() != 1756300000 {
		t.Errorf("posted time not taken from created_utc: %v", got.Posted)
	}

	// A link-only post carries just its title as content.
	if writer.posts[1].Content != "Fed holds rates steady" {
		t.Errorf("link post content = %q", writer.posts[1].Content)
	}
}

func TestSocialFetcher_Rerun_NoDuplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(stocksListing))
	}))
	defer srv.Close()

	writer := newMockWriter()
	s := NewSocialFetcher([]string{"stocks"}, writer, log.NewNop())
	s.baseURL = srv.URL

	if _, err := s.Fetch(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	n, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if n != 0 {
		t.Errorf("repeated fetch should insert nothing new, got %d", n)
	}
}

func TestSocialFetcher_BadSubredditSkipped(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/r/banned/hot.json", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	mux.HandleFunc("/r/stocks/hot.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(stocksListing))
	})

	writer := newMockWriter()
	s := NewSocialFetcher([]string{"banned", "stocks"}, writer, log.NewNop())
	s.baseURL = srv.URL

	n, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("a failing subreddit must not fail the pass: %v", err)
	}
	if n != 2 {
		t.Errorf("expected posts from the healthy subreddit, got %d", n)
	}
}

func TestHostOf(t *testing.T) {
	if got := hostOf("https://www.investopedia.com/terms/s/stock.asp"); got != "investopedia.com" {
		t.Errorf("hostOf = %q", got)
	}
}
