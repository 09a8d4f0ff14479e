package orchestrator

import (
	"strings"

	"github.com/subpirate/analyzer/internal/domain"
)

// mergeAnalysis folds a successful AI refinement into the heuristic analysis.
// Narrative sections (marketing friendliness, SWOT, game plan) are replaced
// wholesale; content strategy keeps the heuristic recommended types because
// those come from verifiable post data, not narrative judgment; title
// templates prefer the AI pattern only when it actually provided one.
func mergeAnalysis(heur domain.AnalysisDetails, refined *domain.AnalysisDetails) domain.AnalysisDetails {
	out := heur

	out.MarketingFriendliness = refined.MarketingFriendliness
	out.StrategicAnalysis = refined.StrategicAnalysis
	out.GamePlan = refined.GamePlan

	out.ContentStrategy.Topics = refined.ContentStrategy.Topics
	out.ContentStrategy.Style = refined.ContentStrategy.Style
	out.ContentStrategy.Dos = refined.ContentStrategy.Dos
	out.ContentStrategy.Donts = refined.ContentStrategy.Donts

	if len(refined.TitleTemplates.Patterns) > 0 {
		out.TitleTemplates = refined.TitleTemplates
		out.TitleTemplates.Patterns = canonicalPatterns(refined.TitleTemplates.Patterns)
	}

	return out
}

// canonicalPatterns prefixes AI patterns with "Title format: " when the AI
// didn't already.
func canonicalPatterns(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		if strings.HasPrefix(p, "Title format:") {
			out[i] = p
		} else {
			out[i] = "Title format: " + p
		}
	}
	return out
}
