package models

import (
	"slices"

	"gorm.io/datatypes"
)

// Cursors is per-source bookkeeping of which units were already consumed
type Cursors struct {
	ProcessedGUIDs  map[string][]string `json:"processed_guids,omitempty"`  // feed URL -> item IDs
	ProcessedVideos map[string][]string `json:"processed_videos,omitempty"` // feed URL -> video IDs
	ProcessedRows   map[string][]int    `json:"processed_rows,omitempty"`   // sheet key -> row offsets
	ProcessedPosts  []string            `json:"processed_posts,omitempty"`  // history entry IDs
}

// HasGUID reports whether an RSS item was already consumed
func (c Cursors) HasGUID(feedURL, guid string) bool {
	return slices.Contains(c.ProcessedGUIDs[feedURL], guid)
}

// HasVideo reports whether a video was already consumed
func (c Cursors) HasVideo(feedURL, videoID string) bool {
	return slices.Contains(c.ProcessedVideos[feedURL], videoID)
}

// HasRow reports whether a sheet row was already consumed
func (c Cursors) HasRow(sheetKey string, row int) bool {
	return slices.Contains(c.ProcessedRows[sheetKey], row)
}

// HasPost reports whether a published post was already reused
func (c Cursors) HasPost(id string) bool {
	return slices.Contains(c.ProcessedPosts, id)
}

// CursorAdvance names what must be marked processed once a unit's job is
// durably enqueued
type CursorAdvance struct {
	Source SourceKind `json:"source"`
	Key    string     `json:"key,omitempty"` // feed URL or sheet key
	ID     string     `json:"id,omitempty"`  // item, video, suggestion or history ID
	Row    int        `json:"row,omitempty"` // keyword line or sheet row offset
}

// ApplyAdvance marks adv as consumed on the in-memory site and returns the
// column patch that persists it. ok is false when nothing changed.
func (s *Site) ApplyAdvance(adv CursorAdvance) (patch map[string]interface{}, ok bool) {
	switch adv.Source {
	case SourceKeywords:
		keywords := slices.Clone(s.Keywords.Data())
		if adv.Row < 0 || adv.Row >= len(keywords) || keywords[adv.Row].Done {
			return nil, false
		}
		keywords[adv.Row].Done = true
		s.Keywords = datatypes.NewJSONType(keywords)
		return map[string]interface{}{"keywords": s.Keywords}, true

	case SourceSuggestion:
		suggestions := slices.Clone(s.Suggestions.Data())
		for i := range suggestions {
			if suggestions[i].ID == adv.ID && suggestions[i].Status == SuggestionPending {
				suggestions[i].Status = SuggestionDispatched
				s.Suggestions = datatypes.NewJSONType(suggestions)
				return map[string]interface{}{"suggestions": s.Suggestions}, true
			}
		}
		return nil, false

	case SourceRSS, SourceVideo, SourceSheet, SourceRecentPost:
		c := s.Cursors.Data().clone()
		switch adv.Source {
		case SourceRSS:
			if c.HasGUID(adv.Key, adv.ID) {
				return nil, false
			}
			c.ProcessedGUIDs[adv.Key] = append(c.ProcessedGUIDs[adv.Key], adv.ID)
		case SourceVideo:
			if c.HasVideo(adv.Key, adv.ID) {
				return nil, false
			}
			c.ProcessedVideos[adv.Key] = append(c.ProcessedVideos[adv.Key], adv.ID)
		case SourceSheet:
			if c.HasRow(adv.Key, adv.Row) {
				return nil, false
			}
			c.ProcessedRows[adv.Key] = append(c.ProcessedRows[adv.Key], adv.Row)
		case SourceRecentPost:
			if c.HasPost(adv.ID) {
				return nil, false
			}
			c.ProcessedPosts = append(c.ProcessedPosts, adv.ID)
		}
		s.Cursors = datatypes.NewJSONType(c)
		return map[string]interface{}{"cursors": s.Cursors}, true
	}

	return nil, false
}

// clone deep-copies the cursor maps so a failed write never leaks into the
// caller's copy
func (c Cursors) clone() Cursors {
	out := Cursors{
		ProcessedGUIDs:  make(map[string][]string, len(c.ProcessedGUIDs)),
		ProcessedVideos: make(map[string][]string, len(c.ProcessedVideos)),
		ProcessedRows:   make(map[string][]int, len(c.ProcessedRows)),
		ProcessedPosts:  slices.Clone(c.ProcessedPosts),
	}
	for k, v := range c.ProcessedGUIDs {
		out.ProcessedGUIDs[k] = slices.Clone(v)
	}
	for k, v := range c.ProcessedVideos {
		out.ProcessedVideos[k] = slices.Clone(v)
	}
	for k, v := range c.ProcessedRows {
		out.ProcessedRows[k] = slices.Clone(v)
	}
	return out
}
