// Package recurrence computes a channel's next run time in the site's zone.
package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/pkg/logger"
)

// Fallback is used when a schedule is malformed or exhausted
const Fallback = 24 * time.Hour

// Params carries a channel's trigger configuration
type Params struct {
	Mode      models.TriggerMode
	Time      string
	Schedules []models.ScheduleEntry
}

// FromSettings extracts Params from a channel's settings
func FromSettings(s *models.ChannelSettings) Params {
	return Params{
		Mode:      s.Trigger,
		Time:      s.Time,
		Schedules: s.Schedules.Data(),
	}
}

// Calculator computes next run instants
type Calculator struct {
	log *logger.Logger
}

// New creates a calculator
func New(log *logger.Logger) *Calculator {
	return &Calculator{log: log.WithComponent("recurrence")}
}

// NextRun returns the next instant the channel should run after now.
// With forceFuture set, the current day's occurrence is always skipped.
func (c *Calculator) NextRun(tz string, p Params, now time.Time, forceFuture bool) time.Time {
	loc := c.location(tz)

	switch p.Mode {
	case models.TriggerDaily, "":
		return c.daily(loc, p.Time, now, forceFuture)
	case models.TriggerSchedules:
		return c.schedules(loc, p.Schedules, now)
	default:
		c.log.Warn().Str("mode", string(p.Mode)).Msg("Unknown trigger mode, retrying in 24h")
		return now.Add(Fallback)
	}
}

func (c *Calculator) location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		c.log.Warn().Err(err).Str("timezone", tz).Msg("Invalid timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

func (c *Calculator) daily(loc *time.Location, clock string, now time.Time, forceFuture bool) time.Time {
	hour, minute, ok := ParseClock(clock)
	if !ok {
		c.log.Warn().Str("time", clock).Msg("Malformed daily time, retrying in 24h")
		return now.Add(Fallback)
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if forceFuture || !next.After(now) {
		// calendar day, not 24h, so DST transitions keep the wall clock
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func (c *Calculator) schedules(loc *time.Location, entries []models.ScheduleEntry, now time.Time) time.Time {
	var best time.Time
	for i, entry := range entries {
		next, ok := c.entryNext(loc, entry, now)
		if !ok {
			c.log.Debug().Int("entry", i).Msg("Skipping malformed schedule entry")
			continue
		}
		if best.IsZero() || next.Before(best) {
			best = next
		}
	}
	if best.IsZero() {
		return now.Add(Fallback)
	}
	return best
}

func (c *Calculator) entryNext(loc *time.Location, entry models.ScheduleEntry, now time.Time) (time.Time, bool) {
	if expr := strings.TrimSpace(entry.Cron); expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return time.Time{}, false
		}
		next := sched.Next(now.In(loc))
		return next, !next.IsZero()
	}

	hour, minute, ok := ParseClock(entry.Time)
	if !ok {
		return time.Time{}, false
	}
	days, ok := parseDays(entry.Days)
	if !ok {
		return time.Time{}, false
	}

	local := now.In(loc)
	for offset := 0; offset <= 7; offset++ {
		candidate := time.Date(local.Year(), local.Month(), local.Day()+offset, hour, minute, 0, 0, loc)
		if !candidate.After(now) {
			continue
		}
		if len(days) == 0 || days[candidate.Weekday()] {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// ParseClock parses "HH:MM" (24h). Single-digit hours are accepted.
func ParseClock(s string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found || len(m) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func parseDays(names []string) (map[time.Weekday]bool, bool) {
	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdays[key]
		if !ok {
			return nil, false
		}
		days[day] = true
	}
	return days, true
}
