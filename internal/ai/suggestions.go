package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/site-autopilot/pkg/errors"
)

// TopicIdea is one model-proposed topic
type TopicIdea struct {
	Topic string `json:"topic"`
	Angle string `json:"angle"`
}

// SuggestionRequest describes the site the ideas are for
type SuggestionRequest struct {
	SiteName string
	Keywords []string
	Covered  []string // topics already suggested or published
	Count    int
}

// SuggestTopics asks Claude for req.Count new topic ideas
func (c *Client) SuggestTopics(ctx context.Context, req SuggestionRequest) ([]TopicIdea, error) {
	if req.Count <= 0 {
		return nil, nil
	}

	userPrompt := fmt.Sprintf(TopicSuggestionUserPrompt,
		req.SiteName,
		bulletList(req.Keywords),
		bulletList(req.Covered),
		req.Count,
	)

	response, err := c.CompleteWithJSON(ctx, TopicSuggestionSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	ideas, err := ParseTopicIdeas(response)
	if err != nil {
		c.log.Error().
			Err(err).
			Str("response", response).
			Msg("Failed to parse suggestion response")
		return nil, err
	}

	if len(ideas) > req.Count {
		ideas = ideas[:req.Count]
	}
	return ideas, nil
}

// ParseTopicIdeas decodes a {"topics": [...]} response, tolerating code
// fences and prose around the object. Blank topics are dropped.
func ParseTopicIdeas(response string) ([]TopicIdea, error) {
	var result struct {
		Topics []TopicIdea `json:"topics"`
	}
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &result); err != nil {
		return nil, errors.Wrap(err, "failed to parse suggestion response")
	}

	ideas := make([]TopicIdea, 0, len(result.Topics))
	for _, idea := range result.Topics {
		idea.Topic = strings.TrimSpace(idea.Topic)
		idea.Angle = strings.TrimSpace(idea.Angle)
		if idea.Topic == "" {
			continue
		}
		ideas = append(ideas, idea)
	}
	return ideas, nil
}

// stripMarkdownCodeBlock cuts the response down to its outermost JSON object
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}

	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
