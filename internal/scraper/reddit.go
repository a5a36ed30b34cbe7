package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/venturist-ai/venturist/config"
)

// Post is one scraped listing entry, normalized across sources.
type Post struct {
	Title       string
	URL         string
	Permalink   string
	Subreddit   string
	Score       int
	NumComments int
	CreatedAt   time.Time
	SelfText    string
}

// Engagement combines votes and discussion volume into a single score.
// Comments weigh double since they signal active interest, not just a click.
func (p Post) Engagement() int {
	return p.Score + 2*p.NumComments
}

// Velocity is engagement per hour since posting.
func (p Post) Velocity() float64 {
	age := time.Since(p.CreatedAt).Hours()
	if age < 1 {
		age = 1
	}
	return float64(p.Engagement()) / age
}

// RedditScraper pulls hot listings from Reddit's public JSON API. No OAuth;
// a descriptive User-Agent keeps us inside the unauthenticated rate limits.
type RedditScraper struct {
	cfg    config.RedditConfig
	client *HTTPClient
	logger *log.Logger
}

func NewRedditScraper(cfg config.RedditConfig, logger *log.Logger) *RedditScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "venturist/1.0 (trend discovery)"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedditScraper{
		cfg:    cfg,
		client: NewHTTPClient(cfg.Timeout, 2, 500*time.Millisecond),
		logger: logger,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				URL         string  `json:"url"`
				Permalink   string  `json:"permalink"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				SelfText    string  `json:"selftext"`
				Stickied    bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Hot fetches the hot listing of one subreddit. Stickied posts are skipped;
// they are moderation artifacts, not signals.
func (s *RedditScraper) Hot(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", s.cfg.BaseURL, subreddit, limit)

	var listing redditListing
	headers := map[string]string{"User-Agent": s.cfg.UserAgent}
	if err := s.client.GetJSON(ctx, url, headers, &listing); err != nil {
		return nil, fmt.Errorf("reddit r/%s: %w", subreddit, err)
	}

	posts := make([]Post, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Stickied || strings.TrimSpace(d.Title) == "" {
			continue
		}
		posts = append(posts, Post{
			Title:       d.Title,
			URL:         d.URL,
			Permalink:   s.cfg.BaseURL + d.Permalink,
			Subreddit:   d.Subreddit,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedAt:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
			SelfText:    d.SelfText,
		})
	}
	return posts, nil
}

// Discover fans out over the configured subreddits and returns everything it
// could fetch, logging per-subreddit failures instead of aborting the run.
func (s *RedditScraper) Discover(ctx context.Context, subreddits []string, limitPerSub int) ([]Post, error) {
	if len(subreddits) == 0 {
		subreddits = s.cfg.Subreddits
	}
	if len(subreddits) == 0 {
		return nil, fmt.Errorf("no subreddits configured")
	}

	var all []Post
	var failures int
	for _, sub := range subreddits {
		posts, err := s.Hot(ctx, sub, limitPerSub)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Printf("[SCRAPER] r/%s failed: %v", sub, err)
			failures++
			continue
		}
		all = append(all, posts...)
	}
	if failures == len(subreddits) {
		return nil, fmt.Errorf("all %d subreddits failed", failures)
	}
	return all, nil
}

// ExtractArticle fetches a linked page and returns its readable text excerpt,
// used to give the scoring model more context than a bare headline. Failures
// are soft: an empty string is returned and the caller proceeds without it.
func ExtractArticle(ctx context.Context, rawURL string, maxLen int) string {
	if rawURL == "" || strings.HasSuffix(rawURL, ".pdf") {
		return ""
	}
	if ctx.Err() != nil {
		return ""
	}

	article, err := readability.FromURL(rawURL, 10*time.Second)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}
