// Package channel describes the five automation channels a site can enable.
// Each channel is the same state machine parameterised by a Config.
package channel

import (
	"github.com/site-autopilot/internal/models"
)

// Kind names an automation channel
type Kind string

const (
	Blog          Kind = "blog"
	SocialGraphic Kind = "social_graphic"
	SocialVideo   Kind = "social_video"
	Email         Kind = "email"
	LiveBroadcast Kind = "live_broadcast"
)

// Config is the fixed per-channel record the scheduler is driven by
type Config struct {
	Kind    Kind
	Queue   string
	JobName string
	// Prefix is the column prefix of the channel's embedded settings
	Prefix   string
	Settings func(*models.Site) *models.ChannelSettings
}

// NextRunColumn is the column holding this channel's next run
func (c Config) NextRunColumn() string {
	return c.Prefix + "next_run_at"
}

// EnabledColumn is the column holding this channel's enabled flag
func (c Config) EnabledColumn() string {
	return c.Prefix + "enabled"
}

var all = []Config{
	{
		Kind:     Blog,
		Queue:    "blog-generation",
		JobName:  "generate-blog-post",
		Prefix:   "blog_",
		Settings: func(s *models.Site) *models.ChannelSettings { return &s.Blog },
	},
	{
		Kind:     SocialGraphic,
		Queue:    "social-graphic-generation",
		JobName:  "generate-social-graphic",
		Prefix:   "social_graphic_",
		Settings: func(s *models.Site) *models.ChannelSettings { return &s.SocialGraphic },
	},
	{
		Kind:     SocialVideo,
		Queue:    "social-video-generation",
		JobName:  "generate-social-video",
		Prefix:   "social_video_",
		Settings: func(s *models.Site) *models.ChannelSettings { return &s.SocialVideo },
	},
	{
		Kind:     Email,
		Queue:    "email-generation",
		JobName:  "generate-email-campaign",
		Prefix:   "email_",
		Settings: func(s *models.Site) *models.ChannelSettings { return &s.Email },
	},
	{
		Kind:     LiveBroadcast,
		Queue:    "live-broadcast-monitor",
		JobName:  "check-live-broadcast",
		Prefix:   "live_broadcast_",
		Settings: func(s *models.Site) *models.ChannelSettings { return &s.LiveBroadcast },
	},
}

// All returns the channels in evaluation order
func All() []Config {
	out := make([]Config, len(all))
	copy(out, all)
	return out
}

// Lookup finds a channel by kind
func Lookup(kind string) (Config, bool) {
	for _, c := range all {
		if string(c.Kind) == kind {
			return c, true
		}
	}
	return Config{}, false
}

// EnabledColumns lists every channel's enabled column
func EnabledColumns() []string {
	cols := make([]string, 0, len(all))
	for _, c := range all {
		cols = append(cols, c.EnabledColumn())
	}
	return cols
}
