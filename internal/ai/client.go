// Package ai wraps the external refinement endpoint that turns the heuristic
// statistical bundle into a fuller strategic analysis.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/subpirate/analyzer/internal/domain"
)

const systemPrompt = `You are a Reddit marketing strategist. Given subreddit metadata,
rules and post statistics, respond with a single JSON object containing
marketing_friendliness, posting_limits, content_strategy, title_templates,
strategic_analysis and game_plan sections.`

// Client calls the refinement endpoint. One request per Refine call; retry
// policy lives with the caller.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient builds a refinement client for the given endpoint.
func NewClient(endpoint, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type refineRequest struct {
	Data           *domain.AnalysisInput `json:"data"`
	SystemPrompt   string                `json:"systemPrompt"`
	ResponseFormat map[string]string     `json:"responseFormat"`
	Model          string                `json:"model,omitempty"`
}

// completionEnvelope is the chat-completion-shaped response the endpoint
// returns; the analysis JSON lives in choices[0].message.content.
type completionEnvelope struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Refine sends the statistical bundle and returns a fully-populated analysis.
// Every untrusted field in the response is parsed through a default-filling
// validator, so callers never see a partially-typed object.
func (c *Client) Refine(ctx context.Context, input *domain.AnalysisInput) (*domain.AnalysisDetails, error) {
	body, err := json.Marshal(refineRequest{
		Data:           input,
		SystemPrompt:   systemPrompt,
		ResponseFormat: map[string]string{"type": "json_object"},
		Model:          c.model,
	})
	if err != nil {
		return nil, &domain.AIAnalysisError{Message: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.AIAnalysisError{Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.AIAnalysisError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.AIAnalysisError{
			Message: strings.TrimSpace(string(snippet)),
			Status:  resp.StatusCode,
		}
	}

	var envelope completionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &domain.AIAnalysisError{Message: fmt.Sprintf("decoding response envelope: %v", err)}
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return nil, &domain.AIAnalysisError{Message: "response contained no choices"}
	}

	content := stripFences(envelope.Choices[0].Message.Content)
	details, err := ParseOutput([]byte(content))
	if err != nil {
		return nil, &domain.AIAnalysisError{Message: err.Error()}
	}
	return details, nil
}

// stripFences unwraps markdown-fenced JSON (```json ... ```) before parsing.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		return strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
