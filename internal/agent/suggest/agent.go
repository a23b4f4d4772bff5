// Package suggest fills a site's agent_suggestion queue with AI-proposed
// topics, one per day in the site's timezone.
package suggest

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/ai"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

// DefaultSlot is the local publishing time used when the blog channel has none
const DefaultSlot = "09:00"

// Suggester proposes topic ideas
type Suggester interface {
	SuggestTopics(ctx context.Context, req ai.SuggestionRequest) ([]ai.TopicIdea, error)
}

// SiteStore is the slice of the repository the agent writes through
type SiteStore interface {
	GetSite(ctx context.Context, id string) (*models.Site, error)
	UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error
}

// Agent turns model ideas into pending suggestions
type Agent struct {
	suggester Suggester
	sites     SiteStore
	now       func() time.Time
	log       *logger.Logger
}

// NewAgent creates a new suggestion agent
func NewAgent(suggester Suggester, sites SiteStore, log *logger.Logger) *Agent {
	return &Agent{
		suggester: suggester,
		sites:     sites,
		now:       time.Now,
		log:       log.WithComponent("suggest"),
	}
}

// Result contains the results of a suggestion run
type Result struct {
	Requested  int
	Received   int
	Added      []models.Suggestion
	Duplicates int
	Duration   time.Duration
}

// Run asks for count ideas and appends the new ones to the site
func (a *Agent) Run(ctx context.Context, siteID string, count int) (*Result, error) {
	start := a.now()
	result := &Result{Requested: count}

	if count <= 0 {
		return nil, errors.Newf("count must be positive, got %d", count)
	}

	site, err := a.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, errors.Wrapf(err, "load site %s", siteID)
	}

	log := a.log.WithSite(site.ID)
	covered := coveredTopics(site)

	ideas, err := a.suggester.SuggestTopics(ctx, ai.SuggestionRequest{
		SiteName: site.Name,
		Keywords: keywordTexts(site),
		Covered:  covered,
		Count:    count,
	})
	if err != nil {
		return nil, errors.Wrap(err, "suggest topics")
	}
	result.Received = len(ideas)

	seen := make(map[string]bool, len(covered))
	for _, t := range covered {
		seen[normalize(t)] = true
	}

	loc := loadLocation(site.Location())
	slot := a.firstSlot(site, loc)

	suggestions := slices.Clone(site.Suggestions.Data())
	for _, idea := range ideas {
		key := normalize(idea.Topic)
		if key == "" || seen[key] {
			result.Duplicates++
			continue
		}
		seen[key] = true

		s := models.Suggestion{
			ID:          uuid.NewString(),
			Topic:       idea.Topic,
			Angle:       idea.Angle,
			ScheduledAt: slot.UTC(),
			Status:      models.SuggestionPending,
		}
		suggestions = append(suggestions, s)
		result.Added = append(result.Added, s)
		slot = nextDay(slot)
	}

	if len(result.Added) > 0 {
		patch := map[string]interface{}{"suggestions": datatypes.NewJSONType(suggestions)}
		if err := a.sites.UpdateSite(ctx, site.ID, patch); err != nil {
			return nil, errors.Wrapf(err, "save suggestions for site %s", site.ID)
		}
	}

	result.Duration = a.now().Sub(start)
	log.Info().
		Int("requested", count).
		Int("received", result.Received).
		Int("added", len(result.Added)).
		Int("duplicates", result.Duplicates).
		Msg("Suggestion run completed")

	return result, nil
}

// firstSlot is the day after the latest pending suggestion, or tomorrow at
// the blog's publishing time in the site's zone
func (a *Agent) firstSlot(site *models.Site, loc *time.Location) time.Time {
	var latest time.Time
	for _, s := range site.Suggestions.Data() {
		if s.Status == models.SuggestionPending && s.ScheduledAt.After(latest) {
			latest = s.ScheduledAt
		}
	}
	if !latest.IsZero() {
		return nextDay(latest.In(loc))
	}

	hour, minute, ok := recurrence.ParseClock(site.Blog.Time)
	if !ok {
		hour, minute, _ = recurrence.ParseClock(DefaultSlot)
	}
	now := a.now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, loc)
}

// nextDay keeps the local wall clock across DST changes
func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func coveredTopics(site *models.Site) []string {
	var out []string
	for _, s := range site.Suggestions.Data() {
		out = append(out, s.Topic)
	}
	for _, h := range site.History.Data() {
		if h.Title != "" {
			out = append(out, h.Title)
		}
	}
	return out
}

func keywordTexts(site *models.Site) []string {
	var out []string
	for _, kw := range site.Keywords.Data() {
		if text := strings.TrimSpace(kw.Text); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func normalize(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), " ")
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
