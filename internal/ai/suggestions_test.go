package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/site-autopilot/internal/config"
	"github.com/site-autopilot/pkg/logger"
	"github.com/site-autopilot/pkg/ratelimit"
)

func TestParseTopicIdeas(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []TopicIdea
		wantErr  bool
	}{
		{
			name:     "plain json",
			response: `{"topics":[{"topic":"Heat pump sizing","angle":"homeowners"}]}`,
			want:     []TopicIdea{{Topic: "Heat pump sizing", Angle: "homeowners"}},
		},
		{
			name:     "fenced with prose",
			response: "Here you go:\n```json\n{\"topics\":[{\"topic\":\"  Solar ROI  \",\"angle\":\"\"}]}\n```",
			want:     []TopicIdea{{Topic: "Solar ROI"}},
		},
		{
			name:     "blank topics dropped",
			response: `{"topics":[{"topic":" "},{"topic":"Wind basics"}]}`,
			want:     []TopicIdea{{Topic: "Wind basics"}},
		},
		{
			name:     "not json",
			response: "sorry, I can't help with that",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopicIdeas(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBulletList(t *testing.T) {
	assert.Equal(t, "(none)", bulletList(nil))
	assert.Equal(t, "- a\n- b", bulletList([]string{"a", "b"}))
}

func newMessagesServer(t *testing.T, text string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"usage": map[string]interface{}{"input_tokens": 12, "output_tokens": 34},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.AnthropicConfig{
		APIKey:      "test-key",
		Model:       "claude-test",
		MaxTokens:   256,
		Temperature: 0.5,
		BaseURL:     srv.URL,
	}, ratelimit.NewDefaultLimiter(ratelimit.Rates{AnthropicPerMinute: 600}), logger.Nop(), option.WithMaxRetries(0))
}

func TestSuggestTopics(t *testing.T) {
	var sent map[string]interface{}
	srv := newMessagesServer(t,
		`{"topics":[{"topic":"A","angle":"x"},{"topic":"B","angle":"y"},{"topic":"C","angle":"z"}]}`,
		&sent)
	client := newTestClient(srv)

	ideas, err := client.SuggestTopics(context.Background(), SuggestionRequest{
		SiteName: "Green Homes",
		Keywords: []string{"solar panels"},
		Covered:  []string{"Solar ROI"},
		Count:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []TopicIdea{{Topic: "A", Angle: "x"}, {Topic: "B", Angle: "y"}}, ideas)

	assert.Equal(t, "claude-test", sent["model"])
	messages, ok := sent["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Contains(t, mustJSON(t, messages[0]), "Green Homes")
	assert.Contains(t, mustJSON(t, messages[0]), "Solar ROI")
}

func TestSuggestTopicsZeroCountSkipsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	defer srv.Close()

	ideas, err := newTestClient(srv).SuggestTopics(context.Background(), SuggestionRequest{Count: 0})
	require.NoError(t, err)
	assert.Empty(t, ideas)
}

func TestSuggestTopicsUnparseable(t *testing.T) {
	srv := newMessagesServer(t, "no json here", nil)

	_, err := newTestClient(srv).SuggestTopics(context.Background(), SuggestionRequest{Count: 1})
	assert.Error(t, err)
}

func TestCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Complete(context.Background(), "sys", "hi")
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
