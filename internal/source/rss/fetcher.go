package rss

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/ratelimit"
)

// Item is one normalised feed entry
type Item struct {
	ID          string
	VideoID     string
	Title       string
	Link        string
	Excerpt     string
	PublishedAt *time.Time
}

// Feed is a fetched feed
type Feed struct {
	Title string
	Items []Item
}

// Fetcher retrieves a feed by URL. Implementations return an error wrapping
// errors.ErrNotAuthorized when the server rejects the request with 401/403.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Feed, error)
}

// HTTPFetcher fetches feeds over HTTP with gofeed
type HTTPFetcher struct {
	parser  *gofeed.Parser
	limiter *ratelimit.MultiLimiter
}

// NewFetcher creates a gofeed-backed fetcher. limiter may be nil.
func NewFetcher(limiter *ratelimit.MultiLimiter, timeout time.Duration) *HTTPFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "site-autopilot/1.0"
	if timeout > 0 {
		parser.Client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{parser: parser, limiter: limiter}
}

// Fetch downloads and parses the feed at url
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Feed, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, ratelimit.LimiterFeeds); err != nil {
			return nil, errors.Wrap(err, "feed rate limit")
		}
	}

	parsed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) &&
			(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return nil, errors.Wrapf(errors.ErrNotAuthorized, "feed %s returned %s", url, httpErr.Status)
		}
		return nil, errors.Wrapf(err, "failed to parse feed %s", url)
	}

	feed := &Feed{
		Title: parsed.Title,
		Items: make([]Item, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		feed.Items = append(feed.Items, toItem(item))
	}
	return feed, nil
}

func toItem(item *gofeed.Item) Item {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}

	excerpt := item.Description
	if excerpt == "" {
		excerpt = item.Content
	}

	return Item{
		ID:          id,
		VideoID:     youtubeVideoID(item),
		Title:       cleanText(item.Title),
		Link:        item.Link,
		Excerpt:     truncate(cleanText(excerpt), 500),
		PublishedAt: item.PublishedParsed,
	}
}

// youtubeVideoID reads the yt:videoId extension YouTube channel feeds carry
func youtubeVideoID(item *gofeed.Item) string {
	yt, ok := item.Extensions["yt"]
	if !ok {
		return ""
	}
	if ids := yt["videoId"]; len(ids) > 0 {
		return strings.TrimSpace(ids[0].Value)
	}
	return ""
}

// cleanText removes HTML tags and extra whitespace
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "<br>", " ")
	text = strings.ReplaceAll(text, "<br/>", " ")
	text = strings.ReplaceAll(text, "<br />", " ")
	text = strings.ReplaceAll(text, "</p>", " ")

	var result strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
