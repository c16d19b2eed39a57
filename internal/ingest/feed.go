package ingest

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

// maxPerFeed caps how many entries one feed contributes per pass.
const maxPerFeed = 20

// FeedFetcher pulls financial news from RSS/Atom feeds and stores each
// entry as a NewsItem.
type FeedFetcher struct {
	feeds  []string
	writer ContentWriter
	parser *gofeed.Parser
	logger log.Logger
}

// NewFeedFetcher constructs a fetcher over the given feed URLs.
func NewFeedFetcher(feeds []string, writer ContentWriter, logger log.Logger) *FeedFetcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &FeedFetcher{
		feeds:  feeds,
		writer: writer,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Refresh parses every configured feed and inserts new entries. A feed
// that fails to parse is logged and skipped; the pass only fails on
// context cancellation. Returns the number of newly stored items.
func (f *FeedFetcher) Refresh(ctx context.Context) error {
	_, err := f.Fetch(ctx)
	return err
}

// Fetch is Refresh with the new-item count exposed for CLI reporting.
func (f *FeedFetcher) Fetch(ctx context.Context) (int, error) {
	total := 0
	for _, feedURL := range f.feeds {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			f.logger.Warn("feed fetch failed, skipping", "feed", feedURL, "error", err)
			continue
		}
		total += n
	}
	f.logger.Info("feed pass complete", "feeds", len(f.feeds), "new_items", total)
	return total, nil
}

func (f *FeedFetcher) fetchFeed(ctx context.Context, feedURL string) (int, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, err
	}

	source := feed.Title
	if source == "" {
		source = hostOf(feedURL)
	}

	inserted := 0
	for i, item := range feed.Items {
		if i >= maxPerFeed {
			break
		}
		news, ok := newsFromItem(item, source)
		if !ok {
			continue
		}
		fresh, err := f.writer.InsertNews(ctx, news)
		if err != nil {
			f.logger.Warn("storing feed entry failed", "url", news.URL, "error", err)
			continue
		}
		if fresh {
			inserted++
		}
	}
	return inserted, nil
}

// newsFromItem converts one feed entry, rejecting entries without a link
// or title.
func newsFromItem(item *gofeed.Item, source string) (store.NewsItem, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return store.NewsItem{}, false
	}

	content := item.Content
	if content == "" {
		content = item.Description
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return store.NewsItem{
		Title:     title,
		Content:   stripTags(content),
		Source:    source,
		URL:       link,
		Published: published,
	}, true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}
