// Package rss serves the rss_feed and video_feed source kinds.
package rss

import (
	"context"
	"time"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/source"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

// Source walks the site's feeds in configured order and returns the first
// entry missing from that feed's processed set
type Source struct {
	kind    models.SourceKind
	fetcher Fetcher
	log     *logger.Logger
}

// NewFeed creates the rss_feed provider
func NewFeed(fetcher Fetcher, log *logger.Logger) *Source {
	return &Source{
		kind:    models.SourceRSS,
		fetcher: fetcher,
		log:     log.WithComponent("rss-source"),
	}
}

// NewVideo creates the video_feed provider
func NewVideo(fetcher Fetcher, log *logger.Logger) *Source {
	return &Source{
		kind:    models.SourceVideo,
		fetcher: fetcher,
		log:     log.WithComponent("video-source"),
	}
}

// Kind returns rss_feed or video_feed
func (s *Source) Kind() models.SourceKind {
	return s.kind
}

// Resolve returns the first unprocessed entry. A failing feed is logged and
// skipped so later feeds still get a chance.
func (s *Source) Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error) {
	feeds := site.Feeds.Data()
	if s.kind == models.SourceVideo {
		feeds = site.VideoFeeds.Data()
	}
	cursors := site.Cursors.Data()

	for _, fs := range feeds {
		if fs.URL == "" {
			continue
		}
		log := s.log.WithSource(string(s.kind), fs.Name)

		feed, err := s.fetcher.Fetch(ctx, fs.URL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			log.Warn().Err(err).Str("site_id", site.ID).Str("url", fs.URL).Msg("Feed fetch failed, trying next source")
			continue
		}

		for _, item := range feed.Items {
			id := s.itemID(item)
			if id == "" || s.processed(cursors, fs.URL, id) {
				continue
			}

			log.Debug().Str("site_id", site.ID).Str("item_id", id).Msg("Resolved feed entry")
			return s.unit(site.ID, fs, item, id), nil
		}
	}

	return nil, nil
}

func (s *Source) itemID(item Item) string {
	if s.kind == models.SourceVideo && item.VideoID != "" {
		return item.VideoID
	}
	return item.ID
}

func (s *Source) processed(c models.Cursors, feedURL, id string) bool {
	if s.kind == models.SourceVideo {
		return c.HasVideo(feedURL, id)
	}
	return c.HasGUID(feedURL, id)
}

func (s *Source) unit(siteID string, fs models.FeedSource, item Item, id string) *models.SourceUnit {
	payload := map[string]interface{}{
		"feed_name": fs.Name,
		"feed_url":  fs.URL,
		"title":     item.Title,
		"link":      item.Link,
		"excerpt":   item.Excerpt,
		"unit_key":  source.UnitKey(siteID, s.kind, fs.URL+"#"+id),
	}
	if s.kind == models.SourceVideo {
		payload["video_id"] = id
	} else {
		payload["guid"] = id
	}

	return &models.SourceUnit{
		Kind:    s.kind,
		Topic:   item.Title,
		Payload: payload,
		Advance: models.CursorAdvance{Source: s.kind, Key: fs.URL, ID: id},
	}
}

// Ensure Source implements source.Provider
var _ source.Provider = (*Source)(nil)
