package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/pkg/logger"
)

func TestClassify(t *testing.T) {
	now := jan1At0905

	tests := []struct {
		name     string
		settings models.ChannelSettings
		want     State
	}{
		{"disabled", models.ChannelSettings{NextRunAt: jan1At0800.UnixMilli()}, StateDisabled},
		{"uninitialized", models.ChannelSettings{Enabled: true}, StateIdle},
		{"negative", models.ChannelSettings{Enabled: true, NextRunAt: -1}, StateIdle},
		{"far negative", models.ChannelSettings{Enabled: true, NextRunAt: -jan1At0900.UnixMilli()}, StateIdle},
		{"future", models.ChannelSettings{Enabled: true, NextRunAt: jan2At0900.UnixMilli()}, StateIdle},
		{"exactly now", models.ChannelSettings{Enabled: true, NextRunAt: now.UnixMilli()}, StateDue},
		{"past", models.ChannelSettings{Enabled: true, NextRunAt: jan1At0900.UnixMilli()}, StateDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(&tt.settings, now))
		})
	}
}

func newTestEvaluator(store *memStore) *Evaluator {
	log := logger.Nop()
	gate := NewGate(store, store, time.Second, log)
	return NewEvaluator(store, testResolver(), recurrence.New(log), gate, 0, time.Second, log)
}

func TestEvaluateBootstrapsScheduleSet(t *testing.T) {
	store := newMemStore(func() time.Time { return jan1At0800 })
	site := &models.Site{
		ID:       "s",
		Timezone: "UTC",
		Email: models.ChannelSettings{
			Enabled: true,
			Trigger: models.TriggerSchedules,
			Schedules: datatypes.NewJSONType([]models.ScheduleEntry{
				{Days: []string{"tue"}, Time: "10:00"},
				{Cron: "0 12 * * 1"},
			}),
			Source: models.SourceKeywords,
		},
	}
	store.addSite(site)
	email, _ := channel.Lookup("email")

	outcome, err := newTestEvaluator(store).Evaluate(context.Background(), site, email, 10, jan1At0800)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBootstrapped, outcome)

	// 2024-01-01 is a Monday: the cron entry fires first
	want := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want.UnixMilli(), store.site("s").Email.NextRunAt)
	assert.Equal(t, want.UnixMilli(), site.Email.NextRunAt, "in-memory copy follows the write")
	assert.Empty(t, store.queued())
}

func TestEvaluateIdleDoesNothing(t *testing.T) {
	store := newMemStore(func() time.Time { return jan1At0800 })
	site := blogSite(jan2At0900)
	store.addSite(site)
	blog, _ := channel.Lookup("blog")

	outcome, err := newTestEvaluator(store).Evaluate(context.Background(), site, blog, 10, jan1At0905)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, outcome)
	assert.Empty(t, store.patches)
}

func TestEvaluateNegativeNextRunBootstraps(t *testing.T) {
	store := newMemStore(func() time.Time { return jan1At0800 })
	site := blogSite(time.Time{})
	site.Blog.NextRunAt = -5
	store.addSite(site)
	blog, _ := channel.Lookup("blog")

	outcome, err := newTestEvaluator(store).Evaluate(context.Background(), site, blog, 10, jan1At0800)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBootstrapped, outcome)
	assert.Equal(t, jan1At0900.UnixMilli(), store.site("site-1").Blog.NextRunAt)
	assert.Empty(t, store.queued())
}

func TestEvaluateInvalidTimezoneUsesUTC(t *testing.T) {
	store := newMemStore(func() time.Time { return jan1At0800 })
	site := blogSite(time.Time{})
	site.Timezone = "Not/AZone"
	store.addSite(site)
	blog, _ := channel.Lookup("blog")

	outcome, err := newTestEvaluator(store).Evaluate(context.Background(), site, blog, 10, jan1At0800)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBootstrapped, outcome)
	assert.Equal(t, jan1At0900.UnixMilli(), store.site("site-1").Blog.NextRunAt)
}

func TestMetricsRecorded(t *testing.T) {
	c := &clock{t: jan1At0905}
	store := newMemStore(c.Now)
	store.addSite(blogSite(jan1At0900))

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	log := logger.Nop()
	loop := NewLoop(Config{}, store, store, store, testResolver(), recurrence.New(log), metrics, log)
	loop.now = c.Now

	loop.RunCycle(context.Background())
	loop.RunCycle(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Cycles.WithLabelValues("ran")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Cycles.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Dispatches.WithLabelValues("blog")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ChannelOutcomes.WithLabelValues("social_graphic", "disabled")))
}
