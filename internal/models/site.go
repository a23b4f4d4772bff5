package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// TriggerMode selects how a channel's next run is computed
type TriggerMode string

const (
	TriggerDaily     TriggerMode = "daily"
	TriggerSchedules TriggerMode = "schedules"
)

// SourceKind selects where a channel pulls its next unit of work from
type SourceKind string

const (
	SourceKeywords   SourceKind = "keyword_list"
	SourceRSS        SourceKind = "rss_feed"
	SourceVideo      SourceKind = "video_feed"
	SourceSheet      SourceKind = "spreadsheet_column"
	SourceRecentPost SourceKind = "recent_post"
	SourceSuggestion SourceKind = "agent_suggestion"
)

// ScheduleEntry is one element of a recurring schedule set. Either Cron is set
// (standard 5-field expression) or Time is set with optional Days (mon..sun,
// empty meaning every day). Both are evaluated in the site's timezone.
type ScheduleEntry struct {
	Days []string `json:"days,omitempty"`
	Time string   `json:"time,omitempty"`
	Cron string   `json:"cron,omitempty"`
}

// ChannelSettings is the per-channel automation state embedded five times in
// Site. NextRunAt is epoch millis, 0 meaning uninitialized.
type ChannelSettings struct {
	Enabled   bool                                `json:"enabled"`
	Trigger   TriggerMode                         `gorm:"size:20;default:'daily'" json:"trigger"`
	Time      string                              `gorm:"size:5" json:"time"`
	Schedules datatypes.JSONType[[]ScheduleEntry] `json:"schedules"`
	NextRunAt int64                               `gorm:"default:0" json:"next_run_at"`
	Source    SourceKind                          `gorm:"size:40" json:"source"`
}

// Initialized reports whether a next run was ever stored. Non-positive
// values are treated as never set.
func (c *ChannelSettings) Initialized() bool {
	return c.NextRunAt > 0
}

// NextRun returns NextRunAt as a time, zero when uninitialized
func (c *ChannelSettings) NextRun() time.Time {
	if !c.Initialized() {
		return time.Time{}
	}
	return time.UnixMilli(c.NextRunAt)
}

// Keyword is one line of a site's keyword list
type Keyword struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// FeedSource is a configured RSS or video feed, in priority order
type FeedSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SheetSource points at a single spreadsheet column
type SheetSource struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Range         string `json:"range"` // e.g. "Topics!A2:A"
}

// Key identifies the sheet column in the processed-row cursor
func (s SheetSource) Key() string {
	return s.SpreadsheetID + "!" + s.Range
}

// SuggestionStatus is the lifecycle of an agent-suggested topic
type SuggestionStatus string

const (
	SuggestionPending    SuggestionStatus = "pending"
	SuggestionDispatched SuggestionStatus = "dispatched"
)

// Suggestion is a topic proposed by the suggestion agent
type Suggestion struct {
	ID          string           `json:"id"`
	Topic       string           `json:"topic"`
	Angle       string           `json:"angle,omitempty"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Status      SuggestionStatus `json:"status"`
}

// HistoryEntry is a piece of content already published for the site
type HistoryEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"` // article, blog_post, social_graphic, ...
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

// Site is a tenant polled for automation
type Site struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	UserID   string `gorm:"index;size:64;not null" json:"user_id"`
	Name     string `json:"name"`
	Timezone string `gorm:"size:64;default:'UTC'" json:"timezone"`

	Blog          ChannelSettings `gorm:"embedded;embeddedPrefix:blog_" json:"blog"`
	SocialGraphic ChannelSettings `gorm:"embedded;embeddedPrefix:social_graphic_" json:"social_graphic"`
	SocialVideo   ChannelSettings `gorm:"embedded;embeddedPrefix:social_video_" json:"social_video"`
	Email         ChannelSettings `gorm:"embedded;embeddedPrefix:email_" json:"email"`
	LiveBroadcast ChannelSettings `gorm:"embedded;embeddedPrefix:live_broadcast_" json:"live_broadcast"`

	Keywords         datatypes.JSONType[[]Keyword]       `json:"keywords"`
	Feeds            datatypes.JSONType[[]FeedSource]    `json:"feeds"`
	VideoFeeds       datatypes.JSONType[[]FeedSource]    `json:"video_feeds"`
	Sheet            datatypes.JSONType[SheetSource]     `json:"sheet"`
	Suggestions      datatypes.JSONType[[]Suggestion]    `json:"suggestions"`
	History          datatypes.JSONType[[]HistoryEntry]  `json:"history"`
	GoogleCredential datatypes.JSONType[OAuthCredential] `json:"-"`
	Cursors          datatypes.JSONType[Cursors]         `json:"cursors"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AnyChannelEnabled reports whether at least one automation channel is on
func (s *Site) AnyChannelEnabled() bool {
	return s.Blog.Enabled || s.SocialGraphic.Enabled || s.SocialVideo.Enabled ||
		s.Email.Enabled || s.LiveBroadcast.Enabled
}

// Location returns the site's timezone name, defaulting to UTC
func (s *Site) Location() string {
	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		return tz
	}
	return "UTC"
}
