package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subpirate/analyzer/internal/domain"
)

func refineInput() *domain.AnalysisInput {
	return &domain.AnalysisInput{
		Info: domain.SubredditInfo{Name: "golang", Subscribers: 250000},
	}
}

func envelopeWith(content string) string {
	env := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(env)
	return string(b)
}

func TestRefineParsesResponse(t *testing.T) {
	analysis := `{"marketing_friendliness": {"score": 82, "reasons": ["active community"]}}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req refineRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golang", req.Data.Info.Name)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])

		w.Write([]byte(envelopeWith(analysis)))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", "gpt-4", time.Second)
	details, err := client.Refine(context.Background(), refineInput())
	require.NoError(t, err)

	assert.Equal(t, 82, details.MarketingFriendliness.Score)
	assert.Equal(t, []string{"active community"}, details.MarketingFriendliness.Reasons)
	// Untouched sections fall back to safe defaults.
	assert.Equal(t, []string{"text"}, details.ContentStrategy.RecommendedTypes)
	assert.Equal(t, "authentic", details.ContentStrategy.Style)
}

func TestRefineStripsMarkdownFences(t *testing.T) {
	fenced := "```json\n{\"marketing_friendliness\": {\"score\": 64}}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(envelopeWith(fenced)))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", time.Second)
	details, err := client.Refine(context.Background(), refineInput())
	require.NoError(t, err)
	assert.Equal(t, 64, details.MarketingFriendliness.Score)
}

func TestRefineNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", time.Second)
	_, err := client.Refine(context.Background(), refineInput())
	require.Error(t, err)

	var aiErr *domain.AIAnalysisError
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, http.StatusServiceUnavailable, aiErr.Status)
	assert.Contains(t, aiErr.Message, "model overloaded")
}

func TestRefineEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", time.Second)
	_, err := client.Refine(context.Background(), refineInput())

	var aiErr *domain.AIAnalysisError
	require.True(t, errors.As(err, &aiErr))
	assert.Contains(t, aiErr.Message, "no choices")
}

func TestRefineMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(envelopeWith("this is not json")))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", time.Second)
	_, err := client.Refine(context.Background(), refineInput())

	var aiErr *domain.AIAnalysisError
	assert.True(t, errors.As(err, &aiErr))
}

func TestRefineContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", "", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Refine(ctx, refineInput())
	assert.Error(t, err)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripFences(tt.in))
		})
	}
}
