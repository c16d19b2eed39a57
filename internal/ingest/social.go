package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

// maxPostsPerSubreddit caps how many posts one subreddit contributes per
// pass.
const maxPostsPerSubreddit = 20

// SocialFetcher collects finance discussion posts from Reddit's public
// listing JSON. The unauthenticated listing endpoint serves the same hot
// posts as the OAuth API at a stricter rate limit; one pass per refresh
// cycle stays well under it.
type SocialFetcher struct {
	subreddits []string
	baseURL    string
	writer     ContentWriter
	client     *http.Client
	logger     log.Logger
}

// NewSocialFetcher constructs a fetcher over the given subreddit names.
func NewSocialFetcher(subreddits []string, writer ContentWriter, logger log.Logger) *SocialFetcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SocialFetcher{
		subreddits: subreddits,
		baseURL:    "https://www.reddit.com",
		writer:     writer,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Refresh pulls every configured subreddit and inserts new posts. A
// subreddit that fails is logged and skipped; the pass only fails on
// context cancellation.
func (s *SocialFetcher) Refresh(ctx context.Context) error {
	_, err := s.Fetch(ctx)
	return err
}

// Fetch is Refresh with the new-post count exposed for CLI reporting.
func (s *SocialFetcher) Fetch(ctx context.Context) (int, error) {
	total := 0
	for _, sub := range s.subreddits {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.fetchSubreddit(ctx, sub)
		if err != nil {
			s.logger.Warn("subreddit fetch failed, skipping", "subreddit", sub, "error", err)
			continue
		}
		total += n
	}
	s.logger.Info("social pass complete", "subreddits", len(s.subreddits), "new_posts", total)
	return total, nil
}

// redditListing is the slice of Reddit's listing payload the fetcher reads.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

func (s *SocialFetcher) fetchSubreddit(ctx context.Context, subreddit string) (int, error) {
	listURL := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1",
		s.baseURL, subreddit, maxPostsPerSubreddit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d for r/%s", resp.StatusCode, subreddit)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return 0, fmt.Errorf("decoding r/%s listing: %w", subreddit, err)
	}

	inserted := 0
	for _, child := range listing.Data.Children {
		post, ok := socialFromRedditPost(child.Data)
		if !ok {
			continue
		}
		fresh, err := s.writer.InsertSocialPost(ctx, post)
		if err != nil {
			s.logger.Warn("storing social post failed", "url", post.URL, "error", err)
			continue
		}
		if fresh {
			inserted++
		}
	}
	return inserted, nil
}

// socialFromRedditPost converts one listing entry, rejecting entries
// without a title or permalink. Link-only posts keep just the title as
// content.
func socialFromRedditPost(p redditPost) (store.SocialPost, bool) {
	title := strings.TrimSpace(p.Title)
	if title == "" || p.Permalink == "" {
		return store.SocialPost{}, false
	}

	content := title
	if body := strings.TrimSpace(p.Selftext); body != "" {
		content += "\n\n" + body
	}

	var posted time.Time
	if p.CreatedUTC > 0 {
		posted = time.Unix(int64(p.CreatedUTC), 0).UTC()
	}

	return store.SocialPost{
		Platform: "Reddit",
		Content:  content,
		URL:      "https://reddit.com" + p.Permalink,
		Posted:   posted,
	}, true
}
