// Package heuristic produces a complete analysis from fetched data alone,
// without any AI call. It is the fast first phase of the pipeline and the
// fallback when refinement is unavailable.
package heuristic

import (
	"fmt"
	"sort"
	"time"

	"github.com/subpirate/analyzer/internal/domain"
	"github.com/subpirate/analyzer/internal/metrics"
)

const (
	recentWindow      = 30 * 24 * time.Hour
	minRecentPosts    = 50
	rankedSampleLimit = 500
	statsSampleLimit  = 100
	resultPostLimit   = 50

	newSubredditScore = 50
)

// Prepare classifies rules and builds the statistical bundle both analysis
// phases consume: posts filtered to the last 30 days (falling back to the
// full sample on low-traffic subreddits), ranked by blended engagement, capped
// at 500, with metrics computed over the top 100.
func Prepare(info *domain.SubredditInfo, posts []domain.Post) *domain.AnalysisInput {
	snapshot := *info
	snapshot.Rules = metrics.ClassifyRules(info.Rules)

	input := &domain.AnalysisInput{Info: snapshot}
	if len(posts) == 0 {
		return input
	}

	cutoff := time.Now().Add(-recentWindow)
	recent := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if p.Created().After(cutoff) {
			recent = append(recent, p)
		}
	}
	if len(recent) < minRecentPosts {
		recent = append([]domain.Post(nil), posts...)
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return blendedEngagement(recent[i]) > blendedEngagement(recent[j])
	})
	if len(recent) > rankedSampleLimit {
		recent = recent[:rankedSampleLimit]
	}

	input.Posts = recent
	input.Engagement = metrics.Engagement(statsSample(recent))
	return input
}

// blendedEngagement ranks posts by score with a smaller weight on discussion.
func blendedEngagement(p domain.Post) float64 {
	return 0.75*float64(p.Score) + 0.25*float64(p.CommentCount)
}

func statsSample(posts []domain.Post) []domain.Post {
	if len(posts) > statsSampleLimit {
		return posts[:statsSampleLimit]
	}
	return posts
}

// Analyze assembles the full heuristic analysis result from the prepared
// input. It never performs I/O.
func Analyze(input *domain.AnalysisInput) *domain.AnalysisResult {
	if len(input.Posts) == 0 {
		return newSubredditResult(input)
	}

	stats := statsSample(input.Posts)
	titles := make([]string, len(stats))
	for i, p := range stats {
		titles[i] = p.Title
	}

	high, medium, restrictions := restrictiveRules(input.Info.Rules)
	postsPerDay := estimatePostsPerDay(stats)

	score := metrics.Score(metrics.ScoreInput{
		Rules:       input.Info.Rules,
		Subscribers: input.Info.Subscribers,
		ActiveUsers: input.Info.ActiveUsers,
		PostCount:   len(input.Posts),
		PostsPerDay: postsPerDay,
		Engagement:  input.Engagement,
	})

	topics := topTopics(titles, 5)
	types := recommendedTypes(stats)

	details := domain.AnalysisDetails{
		MarketingFriendliness: domain.MarketingFriendliness{
			Score:           score,
			Reasons:         scoreReasons(high, medium, input.Engagement),
			Recommendations: scoreRecommendations(score, types),
		},
		PostingLimits: domain.PostingLimits{
			Frequency:           describeFrequency(postsPerDay),
			BestTimeToPost:      formatPeakHours(input.Engagement),
			ContentRestrictions: restrictions,
		},
		ContentStrategy: domain.ContentStrategy{
			RecommendedTypes: types,
			Topics:           topics,
			Style:            describeStyle(titles),
			Dos: []string{
				"Match the content types the community already upvotes",
				"Post during the community's peak hours",
				"Stay active in comments after posting",
			},
			Donts: buildDonts(high),
		},
		TitleTemplates: deriveTitleTemplates(titles),
		StrategicAnalysis: domain.StrategicAnalysis{
			Strengths:     buildStrengths(input),
			Weaknesses:    buildWeaknesses(high, medium),
			Opportunities: buildOpportunities(input, topics),
			Risks:         buildRisks(high),
		},
		GamePlan: domain.GamePlan{
			Immediate: []string{
				"Read the full rules and recent top posts before posting",
				"Draft one post matching the dominant title format",
			},
			ShortTerm: []string{
				"Build comment karma in active threads",
				"Test posting times against the peak-hour windows",
			},
			LongTerm: []string{
				"Establish a recognizable presence before promoting anything",
				"Track which content types earn the most engagement",
			},
		},
	}

	return &domain.AnalysisResult{
		Info:     input.Info,
		Posts:    summarize(input.Posts),
		Analysis: details,
	}
}

// newSubredditResult is the canned output for a subreddit with no posting
// history. Required behavior, not an error path: the score is pinned at 50
// and recommendations cover onboarding only.
func newSubredditResult(input *domain.AnalysisInput) *domain.AnalysisResult {
	_, _, restrictions := restrictiveRules(input.Info.Rules)
	return &domain.AnalysisResult{
		Info:  input.Info,
		Posts: []domain.PostSummary{},
		Analysis: domain.AnalysisDetails{
			MarketingFriendliness: domain.MarketingFriendliness{
				Score:   newSubredditScore,
				Reasons: []string{"No posting history available to evaluate"},
				Recommendations: []string{
					"This appears to be a new or inactive subreddit, so build presence gradually",
					"Start conversations rather than promoting",
					"Watch the community for a few weeks to learn its norms",
				},
			},
			PostingLimits: domain.PostingLimits{
				Frequency:           "Start slowly: one or two posts per week",
				BestTimeToPost:      []string{},
				ContentRestrictions: restrictions,
			},
			ContentStrategy: domain.ContentStrategy{
				RecommendedTypes: []string{"text"},
				Topics:           []string{},
				Style:            "authentic",
				Dos: []string{
					"Introduce yourself and participate before promoting",
					"Follow posting guidelines",
				},
				Donts: []string{
					"Avoid promotional content until the community grows",
				},
			},
			TitleTemplates: domain.TitleTemplates{Patterns: []string{}, Examples: []string{}},
			StrategicAnalysis: domain.StrategicAnalysis{
				Strengths:     []string{"Low competition for attention"},
				Weaknesses:    []string{"Little to no organic reach yet"},
				Opportunities: []string{"Early members can shape the community's direction"},
				Risks:         []string{"Content may get no engagement at all"},
			},
			GamePlan: domain.GamePlan{
				Immediate: []string{"Subscribe and observe the community"},
				ShortTerm: []string{"Contribute discussion posts to seed activity"},
				LongTerm:  []string{"Revisit the analysis once posting activity exists"},
			},
		},
	}
}

func summarize(posts []domain.Post) []domain.PostSummary {
	n := len(posts)
	if n > resultPostLimit {
		n = resultPostLimit
	}
	out := make([]domain.PostSummary, n)
	for i := 0; i < n; i++ {
		out[i] = domain.PostSummary{
			Title:        posts[i].Title,
			Score:        posts[i].Score,
			CommentCount: posts[i].CommentCount,
			CreatedUTC:   posts[i].CreatedUTC,
		}
	}
	return out
}

func restrictiveRules(rules []domain.Rule) (high, medium int, restrictions []string) {
	restrictions = []string{}
	for _, r := range rules {
		switch r.MarketingImpact {
		case domain.ImpactHigh:
			high++
			restrictions = append(restrictions, r.Title)
		case domain.ImpactMedium:
			medium++
			restrictions = append(restrictions, r.Title)
		}
	}
	return high, medium, restrictions
}

func estimatePostsPerDay(posts []domain.Post) float64 {
	if len(posts) == 0 {
		return 0
	}
	oldest, newest := posts[0].CreatedUTC, posts[0].CreatedUTC
	for _, p := range posts {
		if p.CreatedUTC < oldest {
			oldest = p.CreatedUTC
		}
		if p.CreatedUTC > newest {
			newest = p.CreatedUTC
		}
	}
	days := (newest - oldest) / 86400
	if days < 1 {
		days = 1
	}
	return float64(len(posts)) / days
}

func scoreReasons(high, medium int, eng *domain.EngagementMetrics) []string {
	var reasons []string
	switch {
	case high > 0:
		reasons = append(reasons, fmt.Sprintf("%d rule(s) explicitly restrict promotional content", high))
	case medium > 0:
		reasons = append(reasons, fmt.Sprintf("%d rule(s) add quality or approval requirements", medium))
	default:
		reasons = append(reasons, "No rules restrict marketing activity")
	}
	if eng != nil {
		reasons = append(reasons, fmt.Sprintf("Typical post earns %.0f points and %.0f comments", eng.AvgScore, eng.AvgComments))
	}
	return reasons
}

func scoreRecommendations(score int, types []string) []string {
	recs := []string{"Lead with value, keep promotion secondary"}
	if score < 50 {
		recs = append(recs, "Treat this community as high risk for direct promotion")
	}
	if len(types) > 0 {
		recs = append(recs, fmt.Sprintf("Favor %s posts, the community's dominant format", types[0]))
	}
	return recs
}

func describeFrequency(postsPerDay float64) string {
	switch {
	case postsPerDay >= 10:
		return "High-traffic community: multiple posts per day are normal"
	case postsPerDay >= 1:
		return fmt.Sprintf("Around %.0f post(s) per day is typical", postsPerDay)
	default:
		return "Low-traffic community: a few posts per week is typical"
	}
}

func formatPeakHours(eng *domain.EngagementMetrics) []string {
	out := []string{}
	if eng == nil {
		return out
	}
	for _, h := range eng.PeakHours {
		out = append(out, fmt.Sprintf("%02d:00 UTC", h))
	}
	return out
}

func describeStyle(titles []string) string {
	if len(titles) == 0 {
		return "concise"
	}
	total := 0
	for _, t := range titles {
		total += len(t)
	}
	if total/len(titles) > 60 {
		return "detailed"
	}
	return "concise"
}

func buildDonts(high int) []string {
	donts := []string{"Avoid excessive self-promotion"}
	if high > 0 {
		donts = append(donts, "Never link to your own product without established presence")
	}
	return donts
}

func buildStrengths(input *domain.AnalysisInput) []string {
	var s []string
	if input.Engagement != nil && input.Engagement.AvgScore >= 100 {
		s = append(s, "Strong engagement on top posts")
	}
	high, medium, _ := restrictiveRules(input.Info.Rules)
	if high == 0 && medium == 0 {
		s = append(s, "Rules leave room for promotional content")
	}
	if len(s) == 0 {
		s = append(s, "Established posting activity to learn from")
	}
	return s
}

func buildWeaknesses(high, medium int) []string {
	var w []string
	if high > 0 {
		w = append(w, "Explicit anti-promotion rules limit direct marketing")
	}
	if medium > 0 {
		w = append(w, "Quality and format requirements raise the posting bar")
	}
	if len(w) == 0 {
		w = append(w, "Competition for attention from established posters")
	}
	return w
}

func buildOpportunities(input *domain.AnalysisInput, topics []string) []string {
	var o []string
	if input.Info.Subscribers > 0 && input.Info.Subscribers < 10000 {
		o = append(o, "Small community: easier to become a recognized contributor")
	}
	if len(topics) > 0 {
		o = append(o, fmt.Sprintf("Active interest in %s offers natural entry points", topics[0]))
	}
	if len(o) == 0 {
		o = append(o, "Peak-hour posting windows are underused")
	}
	return o
}

func buildRisks(high int) []string {
	risks := []string{"Posts reading as advertising may be downvoted or reported"}
	if high > 0 {
		risks = append(risks, "Rule violations can lead to content removal or a ban")
	}
	return risks
}
