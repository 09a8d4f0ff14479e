package metrics

import (
	"math"

	"github.com/subpirate/analyzer/internal/domain"
)

// Scoring weights and adjustments. Hand-tuned for an optimistic prior: a
// community that doesn't explicitly restrict marketing should score high.
const (
	weightRules      = 40
	weightModeration = 30
	weightEngagement = 30

	baselineScore = 70

	highRulePenalty   = 25
	mediumRulePenalty = 10
	lowRuleBonus      = 5
	lowRuleBonusCap   = 15

	frequencyPenaltyCap = 20
	activityPenaltyCap  = 15

	smallCommunityMax   = 10000
	smallCommunityBonus = 8
	permissiveOnlyBonus = 15
	noHistoryPenalty    = 5

	noHighRuleFloor = 40
	scoreMin        = 15
	scoreMax        = 100
)

// ScoreInput bundles everything the marketing score depends on. Rules must
// already be classified.
type ScoreInput struct {
	Rules       []domain.Rule
	Subscribers int
	ActiveUsers int
	PostCount   int
	PostsPerDay float64
	Engagement  *domain.EngagementMetrics
}

// Score computes the 0-100 marketing-friendliness score: a weighted blend of
// rule flexibility, moderation activity and community engagement, combined
// additively with an optimistic baseline.
func Score(in ScoreInput) int {
	high, medium, low := countByImpact(in.Rules)

	rf := ruleFlexibility(high, medium, low)
	ma := moderationActivity(in)
	eng := engagementFactor(in.Engagement)

	weighted := (weightRules*rf + weightModeration*ma + weightEngagement*eng) / 100

	score := baselineScore + (weighted-baselineScore)/2

	if in.Subscribers > 0 && in.Subscribers < smallCommunityMax {
		score += smallCommunityBonus
	}
	if len(in.Rules) > 0 && high == 0 && medium == 0 {
		score += permissiveOnlyBonus
	}
	if in.PostCount == 0 {
		score -= noHistoryPenalty
	}

	if high == 0 && score < noHighRuleFloor {
		score = noHighRuleFloor
	}
	return clamp(score, scoreMin, scoreMax)
}

func ruleFlexibility(high, medium, low int) float64 {
	flex := 100.0
	flex -= float64(high * highRulePenalty)
	flex -= float64(medium * mediumRulePenalty)
	bonus := low * lowRuleBonus
	if bonus > lowRuleBonusCap {
		bonus = lowRuleBonusCap
	}
	flex += float64(bonus)
	return clampF(flex, 0, 100)
}

// moderationActivity assumes busier, more actively moderated communities are
// stricter about marketing, but the penalty is capped so large healthy subs
// are not written off.
func moderationActivity(in ScoreInput) float64 {
	activity := 100.0

	freqPenalty := in.PostsPerDay * 2
	if freqPenalty > frequencyPenaltyCap {
		freqPenalty = frequencyPenaltyCap
	}
	activity -= freqPenalty

	if in.Subscribers > 0 {
		ratio := float64(in.ActiveUsers) / float64(in.Subscribers)
		actPenalty := ratio * 100 * 0.5
		if actPenalty > activityPenaltyCap {
			actPenalty = activityPenaltyCap
		}
		activity -= actPenalty
	}
	return clampF(activity, 0, 100)
}

// engagementFactor rewards engagement on a log scale; 50 is neutral for a
// community with no measurable engagement.
func engagementFactor(m *domain.EngagementMetrics) float64 {
	if m == nil {
		return 50
	}
	bonus := math.Log10(1+m.AvgScore+m.AvgComments) * 15
	if bonus > 50 {
		bonus = 50
	}
	return 50 + bonus
}

func clamp(v float64, lo, hi int) int {
	n := int(math.Round(v))
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
