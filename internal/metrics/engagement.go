package metrics

import (
	"github.com/subpirate/analyzer/internal/domain"
)

// Engagement computes activity statistics over a post sample. Returns nil for
// an empty sample; callers treat that as the "new subreddit" case.
func Engagement(posts []domain.Post) *domain.EngagementMetrics {
	if len(posts) == 0 {
		return nil
	}

	var m domain.EngagementMetrics
	var totalScore, totalComments int
	for _, p := range posts {
		totalScore += p.Score
		totalComments += p.CommentCount
		m.PostsPerHour[p.Created().UTC().Hour()]++
	}

	n := float64(len(posts))
	m.AvgScore = float64(totalScore) / n
	m.AvgComments = float64(totalComments) / n

	// Comments per upvote: how much conversation a typical post generates.
	if m.AvgScore > 0 {
		m.InteractionRate = m.AvgComments / m.AvgScore
	} else {
		m.InteractionRate = m.AvgComments
	}

	m.PeakHours = peakHours(m.PostsPerHour)
	return &m
}

// peakHours returns every hour whose post count is at least 80% of the busiest
// hour. Ties are included on purpose: a flat-ish distribution has several
// equally good posting windows.
func peakHours(perHour [24]int) []int {
	max := 0
	for _, c := range perHour {
		if c > max {
			max = c
		}
	}
	if max == 0 {
		return nil
	}
	threshold := float64(max) * 0.8
	var hours []int
	for h, c := range perHour {
		if c > 0 && float64(c) >= threshold {
			hours = append(hours, h)
		}
	}
	return hours
}
