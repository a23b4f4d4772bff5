// Package recentpost repurposes the site's most recently published article.
package recentpost

import (
	"context"
	"time"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/source"
)

// DefaultWindow is how far back a published post still counts as recent
const DefaultWindow = 24 * time.Hour

// originalTypes are the history entry types that count as original content
var originalTypes = map[string]bool{
	"article":   true,
	"blog_post": true,
}

// Source picks the newest original post published inside the window
type Source struct {
	window time.Duration
}

// New creates the recent_post provider. A non-positive window uses DefaultWindow.
func New(window time.Duration) *Source {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Source{window: window}
}

// Kind returns recent_post
func (s *Source) Kind() models.SourceKind {
	return models.SourceRecentPost
}

// Resolve returns the newest qualifying post not yet reused. The window is
// measured back from now, the cycle's evaluation instant.
func (s *Source) Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error) {
	cutoff := now.Add(-s.window)
	cursors := site.Cursors.Data()

	var best *models.HistoryEntry
	history := site.History.Data()
	for i := range history {
		entry := &history[i]
		if !originalTypes[entry.Type] || entry.PublishedAt.Before(cutoff) || cursors.HasPost(entry.ID) {
			continue
		}
		if best == nil || entry.PublishedAt.After(best.PublishedAt) {
			best = entry
		}
	}
	if best == nil {
		return nil, nil
	}

	return &models.SourceUnit{
		Kind:  models.SourceRecentPost,
		Topic: best.Title,
		Payload: map[string]interface{}{
			"post_id":      best.ID,
			"title":        best.Title,
			"url":          best.URL,
			"published_at": best.PublishedAt,
			"unit_key":     source.UnitKey(site.ID, models.SourceRecentPost, best.ID),
		},
		Advance: models.CursorAdvance{Source: models.SourceRecentPost, ID: best.ID},
	}, nil
}

// Ensure Source implements source.Provider
var _ source.Provider = (*Source)(nil)
