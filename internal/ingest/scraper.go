package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

// maxArticlesPerPass bounds full-content fetches per refresh cycle.
const maxArticlesPerPass = 30

// minArticleLength rejects extraction results that are too short to be a
// real article body.
const minArticleLength = 100

// AggregatorScraper crawls news-aggregator listing pages for article
// links, extracts each article's readable content, and stores the result.
type AggregatorScraper struct {
	pages       []string
	writer      ContentWriter
	parallelism int
	delay       time.Duration
	client      *http.Client
	logger      log.Logger
}

// NewAggregatorScraper constructs a scraper over the given listing pages.
// parallelism and delay tune the listing crawl; content fetches are
// sequential.
func NewAggregatorScraper(pages []string, writer ContentWriter, parallelism int, delay time.Duration, logger log.Logger) *AggregatorScraper {
	if logger == nil {
		logger = log.NewNop()
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &AggregatorScraper{
		pages:       pages,
		writer:      writer,
		parallelism: parallelism,
		delay:       delay,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// Refresh crawls all listing pages and stores new articles.
func (a *AggregatorScraper) Refresh(ctx context.Context) error {
	_, err := a.Scrape(ctx)
	return err
}

// Scrape is Refresh with the new-article count exposed for CLI reporting.
func (a *AggregatorScraper) Scrape(ctx context.Context) (int, error) {
	links, err := a.collectLinks(ctx)
	if err != nil {
		return 0, fmt.Errorf("collecting article links: %w", err)
	}

	inserted := 0
	// One failed domain tends to mean they all fail; skip its remainder.
	failedHosts := make(map[string]bool)
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if inserted >= maxArticlesPerPass {
			break
		}
		host := hostOf(link)
		if failedHosts[host] {
			continue
		}

		article, err := a.fetchArticle(ctx, link)
		if err != nil {
			failedHosts[host] = true
			a.logger.Warn("article fetch failed, skipping host", "url", link, "error", err)
			continue
		}
		fresh, err := a.writer.InsertAggregatorArticle(ctx, article)
		if err != nil {
			a.logger.Warn("storing article failed", "url", link, "error", err)
			continue
		}
		if fresh {
			inserted++
		}
	}
	a.logger.Info("aggregator pass complete", "links", len(links), "new_articles", inserted)
	return inserted, nil
}

// collectLinks crawls each listing page and returns same-host article
// links in discovery order.
func (a *AggregatorScraper) collectLinks(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		seen  = make(map[string]bool)
		links []string
	)

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(1),
		colly.Async(true),
		colly.StdlibContext(ctx),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: a.parallelism,
		Delay:       a.delay,
	}); err != nil {
		return nil, err
	}

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if !isArticleLink(link, e.Request.URL) {
			return
		}
		mu.Lock()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
		mu.Unlock()
	})
	c.OnError(func(r *colly.Response, err error) {
		a.logger.Warn("listing page crawl failed", "url", r.Request.URL.String(), "error", err)
	})

	for _, page := range a.pages {
		if err := c.Visit(page); err != nil {
			a.logger.Warn("visit failed", "url", page, "error", err)
		}
	}
	c.Wait()

	return links, ctx.Err()
}

// isArticleLink keeps same-host links that look like article pages.
func isArticleLink(link string, listing *url.URL) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host != listing.Host {
		return false
	}
	return strings.Contains(u.Path, "/news/") || strings.Contains(u.Path, "/article")
}

// fetchArticle downloads one article page and extracts its readable text.
func (a *AggregatorScraper) fetchArticle(ctx context.Context, articleURL string) (store.AggregatorArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return store.AggregatorArticle{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return store.AggregatorArticle{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return store.AggregatorArticle{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.AggregatorArticle{}, err
	}
	parsed, err := url.Parse(articleURL)
	if err != nil {
		return store.AggregatorArticle{}, err
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return store.AggregatorArticle{}, fmt.Errorf("extracting content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if article.Title == "" || len(text) < minArticleLength {
		return store.AggregatorArticle{}, fmt.Errorf("no extractable content")
	}

	result := store.AggregatorArticle{
		Title:   article.Title,
		Content: text,
		Source:  hostOf(articleURL),
		URL:     articleURL,
	}
	if article.PublishedTime != nil {
		result.Published = *article.PublishedTime
	}
	return result, nil
}
