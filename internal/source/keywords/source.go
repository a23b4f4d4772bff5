// Package keywords serves the site's ordered keyword list.
package keywords

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/source"
	"github.com/site-autopilot/pkg/logger"
)

// Source returns the first keyword not yet flagged done
type Source struct {
	log *logger.Logger
}

// New creates a keyword list source
func New(log *logger.Logger) *Source {
	return &Source{log: log.WithSource(string(models.SourceKeywords), "keywords")}
}

// Kind returns keyword_list
func (s *Source) Kind() models.SourceKind {
	return models.SourceKeywords
}

// Resolve returns the first undone, non-blank keyword
func (s *Source) Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error) {
	for i, kw := range site.Keywords.Data() {
		text := strings.TrimSpace(kw.Text)
		if kw.Done || text == "" {
			continue
		}

		s.log.Debug().Str("site_id", site.ID).Int("line", i).Str("keyword", text).Msg("Resolved keyword")
		return &models.SourceUnit{
			Kind:  models.SourceKeywords,
			Topic: text,
			Payload: map[string]interface{}{
				"keyword":  text,
				"line":     i,
				"unit_key": source.UnitKey(site.ID, models.SourceKeywords, strconv.Itoa(i)),
			},
			Advance: models.CursorAdvance{Source: models.SourceKeywords, Row: i},
		}, nil
	}
	return nil, nil
}

// Ensure Source implements source.Provider
var _ source.Provider = (*Source)(nil)
