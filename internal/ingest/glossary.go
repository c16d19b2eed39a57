package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// maxTermsPerPass bounds how many new definitions one pass fetches, so a
// full dictionary crawl spreads across refresh cycles.
const maxTermsPerPass = 50

// GlossaryScraper collects financial term definitions from a dictionary
// index page. The index lists term links under /terms/ paths; each term
// page carries a heading and a definition body.
type GlossaryScraper struct {
	indexURL string
	writer   ContentWriter
	client   *http.Client
	logger   log.Logger
}

// NewGlossaryScraper constructs a scraper for the given dictionary index.
func NewGlossaryScraper(indexURL string, writer ContentWriter, logger log.Logger) *GlossaryScraper {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GlossaryScraper{
		indexURL: indexURL,
		writer:   writer,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Refresh crawls the index and stores new term definitions.
func (g *GlossaryScraper) Refresh(ctx context.Context) error {
	_, err := g.Scrape(ctx)
	return err
}

// Scrape is Refresh with the new-term count exposed for CLI reporting.
func (g *GlossaryScraper) Scrape(ctx context.Context) (int, error) {
	links, err := g.termLinks(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching term links: %w", err)
	}

	inserted := 0
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if inserted >= maxTermsPerPass {
			break
		}
		term, err := g.fetchTerm(ctx, link)
		if err != nil {
			g.logger.Warn("term fetch failed, skipping", "url", link, "error", err)
			continue
		}
		fresh, err := g.writer.InsertGlossaryTerm(ctx, term)
		if err != nil {
			g.logger.Warn("storing term failed", "url", link, "error", err)
			continue
		}
		if fresh {
			inserted++
		}
	}
	g.logger.Info("glossary pass complete", "links", len(links), "new_terms", inserted)
	return inserted, nil
}

// termLinks extracts absolute term-page URLs from the dictionary index.
func (g *GlossaryScraper) termLinks(ctx context.Context) ([]string, error) {
	doc, err := g.fetchDocument(ctx, g.indexURL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(g.indexURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/terms/") || !strings.HasPrefix(href, "/") {
			return
		}
		abs := base.Scheme + "://" + base.Host + href
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links, nil
}

func (g *GlossaryScraper) fetchTerm(ctx context.Context, termURL string) (store.GlossaryTerm, error) {
	doc, err := g.fetchDocument(ctx, termURL)
	if err != nil {
		return store.GlossaryTerm{}, err
	}

	term := strings.TrimSpace(doc.Find("h1").First().Text())
	definition := strings.TrimSpace(doc.Find("div.article-body").First().Text())
	if definition == "" {
		definition = strings.TrimSpace(doc.Find("article").First().Text())
	}
	if term == "" || definition == "" {
		return store.GlossaryTerm{}, fmt.Errorf("no term content at %s", termURL)
	}

	return store.GlossaryTerm{
		Term:       term,
		Definition: definition,
		Source:     hostOf(termURL),
		URL:        termURL,
	}, nil
}

func (g *GlossaryScraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// stripTags flattens an HTML fragment to its text content. Plain text
// passes through unchanged.
func stripTags(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
