package metrics

import (
	"strings"

	"github.com/subpirate/analyzer/internal/domain"
)

// Explicitly permissive phrasing short-circuits everything else: a rule that
// says promotion is fine is low impact no matter what else it mentions.
var permissivePhrases = []string{
	"self-promotion allowed",
	"self promotion allowed",
	"self-promotion is allowed",
	"self promotion is allowed",
	"promotion welcome",
	"promotion is welcome",
	"advertising allowed",
	"marketing allowed",
}

// High-impact keywords that need no negation context.
var highKeywords = []string{
	"spam",
	"zero tolerance",
	"permanent ban",
	"permaban",
}

// Terms that are high impact only when the rule forbids them.
var negatedHighTerms = []string{
	"promotion",
	"self-promotion",
	"self promotion",
	"advertising",
	"advertisement",
	"selling",
	"solicitation",
}

var mediumKeywords = []string{
	"quality",
	"format",
	"approval required",
	"require approval",
	"mod approval",
	"promotional guidelines",
	"flair required",
	"account age",
	"karma requirement",
}

// ClassifyRuleImpact grades one rule by keyword matching over its lower-cased
// title and description. Rules silent on marketing default to low impact: the
// score is deliberately optimistic about communities that don't forbid it.
func ClassifyRuleImpact(rule domain.Rule) domain.RuleImpact {
	text := strings.ToLower(rule.Title + " " + rule.Description)

	for _, phrase := range permissivePhrases {
		if strings.Contains(text, phrase) {
			return domain.ImpactLow
		}
	}

	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return domain.ImpactHigh
		}
	}
	for _, term := range negatedHighTerms {
		if forbids(text, term) {
			return domain.ImpactHigh
		}
	}

	for _, kw := range mediumKeywords {
		if strings.Contains(text, kw) {
			return domain.ImpactMedium
		}
	}

	return domain.ImpactLow
}

// ClassifyRules returns a copy of rules with MarketingImpact populated.
func ClassifyRules(rules []domain.Rule) []domain.Rule {
	out := make([]domain.Rule, len(rules))
	for i, r := range rules {
		r.MarketingImpact = ClassifyRuleImpact(r)
		out[i] = r
	}
	return out
}

// forbids reports whether text negates the given term ("no promotion",
// "advertising is not allowed", "selling prohibited", ...).
func forbids(text, term string) bool {
	if strings.Contains(text, "no "+term) {
		return true
	}
	idx := strings.Index(text, term)
	if idx < 0 {
		return false
	}
	rest := text[idx+len(term):]
	for _, suffix := range []string{" is not allowed", " not allowed", " prohibited", " is prohibited", " banned", " is banned", " forbidden", " is forbidden", " will be removed"} {
		if strings.HasPrefix(rest, suffix) {
			return true
		}
	}
	return false
}

// countByImpact tallies classified rules per impact level.
func countByImpact(rules []domain.Rule) (high, medium, low int) {
	for _, r := range rules {
		switch r.MarketingImpact {
		case domain.ImpactHigh:
			high++
		case domain.ImpactMedium:
			medium++
		default:
			low++
		}
	}
	return high, medium, low
}
