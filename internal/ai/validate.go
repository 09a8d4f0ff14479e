package ai

import (
	"encoding/json"
	"fmt"

	"github.com/subpirate/analyzer/internal/domain"
)

// ParseOutput decodes an AI response into a fully-populated AnalysisDetails.
// Each section and each field is parsed independently: a missing or malformed
// field gets a sensible default instead of failing the whole response, and
// valid data is never overwritten. Only a top-level shape that is not a JSON
// object is an error.
func ParseOutput(data []byte) (*domain.AnalysisDetails, error) {
	var sections struct {
		MarketingFriendliness json.RawMessage `json:"marketing_friendliness"`
		PostingLimits         json.RawMessage `json:"posting_limits"`
		ContentStrategy       json.RawMessage `json:"content_strategy"`
		TitleTemplates        json.RawMessage `json:"title_templates"`
		StrategicAnalysis     json.RawMessage `json:"strategic_analysis"`
		GamePlan              json.RawMessage `json:"game_plan"`
	}
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	out := &domain.AnalysisDetails{}

	{
		var raw struct {
			Score           json.RawMessage `json:"score"`
			Reasons         json.RawMessage `json:"reasons"`
			Recommendations json.RawMessage `json:"recommendations"`
		}
		decode(sections.MarketingFriendliness, &raw)
		out.MarketingFriendliness = domain.MarketingFriendliness{
			Score:           clampScore(intOr(raw.Score, 50)),
			Reasons:         stringsOr(raw.Reasons, []string{"Automated analysis of rules and activity"}),
			Recommendations: stringsOr(raw.Recommendations, []string{"Follow posting guidelines"}),
		}
	}

	{
		var raw struct {
			Frequency           json.RawMessage `json:"frequency"`
			BestTimeToPost      json.RawMessage `json:"best_time_to_post"`
			ContentRestrictions json.RawMessage `json:"content_restrictions"`
		}
		decode(sections.PostingLimits, &raw)
		out.PostingLimits = domain.PostingLimits{
			Frequency:           stringOr(raw.Frequency, "Follow community norms"),
			BestTimeToPost:      stringsOr(raw.BestTimeToPost, []string{}),
			ContentRestrictions: stringsOr(raw.ContentRestrictions, []string{}),
		}
	}

	{
		var raw struct {
			RecommendedTypes json.RawMessage `json:"recommended_types"`
			Topics           json.RawMessage `json:"topics"`
			Style            json.RawMessage `json:"style"`
			Dos              json.RawMessage `json:"dos"`
			Donts            json.RawMessage `json:"donts"`
		}
		decode(sections.ContentStrategy, &raw)
		out.ContentStrategy = domain.ContentStrategy{
			RecommendedTypes: stringsOr(raw.RecommendedTypes, []string{"text"}),
			Topics:           stringsOr(raw.Topics, []string{}),
			Style:            stringOr(raw.Style, "authentic"),
			Dos:              stringsOr(raw.Dos, []string{"Follow posting guidelines"}),
			Donts:            stringsOr(raw.Donts, []string{"Avoid excessive self-promotion"}),
		}
	}

	{
		var raw struct {
			Patterns      json.RawMessage `json:"patterns"`
			Examples      json.RawMessage `json:"examples"`
			Effectiveness json.RawMessage `json:"effectiveness"`
		}
		decode(sections.TitleTemplates, &raw)
		out.TitleTemplates = domain.TitleTemplates{
			Patterns:      stringsOr(raw.Patterns, []string{}),
			Examples:      stringsOr(raw.Examples, []string{}),
			Effectiveness: clampScore(intOr(raw.Effectiveness, 0)),
		}
	}

	{
		var raw struct {
			Strengths     json.RawMessage `json:"strengths"`
			Weaknesses    json.RawMessage `json:"weaknesses"`
			Opportunities json.RawMessage `json:"opportunities"`
			Risks         json.RawMessage `json:"risks"`
		}
		decode(sections.StrategicAnalysis, &raw)
		out.StrategicAnalysis = domain.StrategicAnalysis{
			Strengths:     stringsOr(raw.Strengths, []string{}),
			Weaknesses:    stringsOr(raw.Weaknesses, []string{}),
			Opportunities: stringsOr(raw.Opportunities, []string{}),
			Risks:         stringsOr(raw.Risks, []string{}),
		}
	}

	{
		var raw struct {
			Immediate json.RawMessage `json:"immediate"`
			ShortTerm json.RawMessage `json:"short_term"`
			LongTerm  json.RawMessage `json:"long_term"`
		}
		decode(sections.GamePlan, &raw)
		out.GamePlan = domain.GamePlan{
			Immediate: stringsOr(raw.Immediate, []string{}),
			ShortTerm: stringsOr(raw.ShortTerm, []string{}),
			LongTerm:  stringsOr(raw.LongTerm, []string{}),
		}
	}

	return out, nil
}

// decode fills dst from raw, ignoring malformed sections: their fields then
// fall through to defaults.
func decode(raw json.RawMessage, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func stringsOr(raw json.RawMessage, fallback []string) []string {
	if len(raw) == 0 {
		return fallback
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return fallback
	}
	return v
}

func stringOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil || v == "" {
		return fallback
	}
	return v
}

func intOr(raw json.RawMessage, fallback int) int {
	if len(raw) == 0 {
		return fallback
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fallback
	}
	return int(v)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
