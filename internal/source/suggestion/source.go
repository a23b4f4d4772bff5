// Package suggestion serves topics proposed by the suggestion agent.
package suggestion

import (
	"context"
	"time"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/source"
)

// Source picks the pending suggestion scheduled earliest
type Source struct{}

// New creates the agent_suggestion provider
func New() *Source {
	return &Source{}
}

// Kind returns agent_suggestion
func (s *Source) Kind() models.SourceKind {
	return models.SourceSuggestion
}

// Resolve returns the earliest pending suggestion. Ties keep list order.
func (s *Source) Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error) {
	var best *models.Suggestion
	suggestions := site.Suggestions.Data()
	for i := range suggestions {
		sg := &suggestions[i]
		if sg.Status != models.SuggestionPending {
			continue
		}
		if best == nil || sg.ScheduledAt.Before(best.ScheduledAt) {
			best = sg
		}
	}
	if best == nil {
		return nil, nil
	}

	return &models.SourceUnit{
		Kind:  models.SourceSuggestion,
		Topic: best.Topic,
		Payload: map[string]interface{}{
			"suggestion_id": best.ID,
			"topic":         best.Topic,
			"angle":         best.Angle,
			"scheduled_at":  best.ScheduledAt,
			"unit_key":      source.UnitKey(site.ID, models.SourceSuggestion, best.ID),
		},
		Advance: models.CursorAdvance{Source: models.SourceSuggestion, ID: best.ID},
	}, nil
}

// Ensure Source implements source.Provider
var _ source.Provider = (*Source)(nil)
