package domain

import (
	"context"
	"time"
)

// RuleImpact grades how much a subreddit rule restricts marketing activity.
type RuleImpact string

const (
	ImpactHigh   RuleImpact = "high"
	ImpactMedium RuleImpact = "medium"
	ImpactLow    RuleImpact = "low"
)

// Rule is a single subreddit rule with its derived marketing impact.
type Rule struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	MarketingImpact RuleImpact `json:"marketing_impact"`
}

// SubredditInfo is a snapshot of a community's public metadata.
type SubredditInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Subscribers int    `json:"subscribers"`
	ActiveUsers int    `json:"active_users"`
	NSFW        bool   `json:"nsfw"`
	Rules       []Rule `json:"rules"`
}

// Post is the clean data structure for historical posts
type Post struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Subreddit    string  `json:"subreddit"`
	Author       string  `json:"author"`
	URL          string  `json:"url"`
	Score        int     `json:"score"`
	CommentCount int     `json:"comment_count"`
	CreatedUTC   float64 `json:"created_utc"`
	SelfText     string  `json:"selftext,omitempty"`
	IsSelf       bool    `json:"is_self"`
}

// Created returns the post creation time.
func (p Post) Created() time.Time {
	return time.Unix(int64(p.CreatedUTC), 0)
}

// PostSummary is the trimmed projection of a post carried in analysis output.
type PostSummary struct {
	Title        string  `json:"title"`
	Score        int     `json:"score"`
	CommentCount int     `json:"comment_count"`
	CreatedUTC   float64 `json:"created_utc"`
}

// EngagementMetrics summarizes a post sample. Absent (nil) when the sample is empty.
type EngagementMetrics struct {
	AvgComments     float64 `json:"avg_comments"`
	AvgScore        float64 `json:"avg_score"`
	PeakHours       []int   `json:"peak_hours"`
	InteractionRate float64 `json:"interaction_rate"`
	PostsPerHour    [24]int `json:"posts_per_hour"`
}

// MarketingFriendliness carries the headline score and its reasoning.
type MarketingFriendliness struct {
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons"`
	Recommendations []string `json:"recommendations"`
}

// PostingLimits describes how often and when to post.
type PostingLimits struct {
	Frequency           string   `json:"frequency"`
	BestTimeToPost      []string `json:"best_time_to_post"`
	ContentRestrictions []string `json:"content_restrictions"`
}

// ContentStrategy describes what to post.
type ContentStrategy struct {
	RecommendedTypes []string `json:"recommended_types"`
	Topics           []string `json:"topics"`
	Style            string   `json:"style"`
	Dos              []string `json:"dos"`
	Donts            []string `json:"donts"`
}

// TitleTemplates describes title formats that perform well.
type TitleTemplates struct {
	Patterns      []string `json:"patterns"`
	Examples      []string `json:"examples"`
	Effectiveness int      `json:"effectiveness"`
}

// StrategicAnalysis is the SWOT-style narrative section.
type StrategicAnalysis struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Risks         []string `json:"risks"`
}

// GamePlan breaks recommendations into time horizons.
type GamePlan struct {
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
}

// AnalysisDetails is the full analysis body shared by the heuristic and AI passes.
type AnalysisDetails struct {
	MarketingFriendliness MarketingFriendliness `json:"marketing_friendliness"`
	PostingLimits         PostingLimits         `json:"posting_limits"`
	ContentStrategy       ContentStrategy       `json:"content_strategy"`
	TitleTemplates        TitleTemplates        `json:"title_templates"`
	StrategicAnalysis     StrategicAnalysis     `json:"strategic_analysis"`
	GamePlan              GamePlan              `json:"game_plan"`
}

// AnalysisResult is the externally visible output of one completed task.
type AnalysisResult struct {
	Info     SubredditInfo   `json:"info"`
	Posts    []PostSummary   `json:"posts"`
	Analysis AnalysisDetails `json:"analysis"`
}

// AnalysisInput is the statistical bundle the heuristic pass builds and the AI
// refinement pass consumes: the ranked post sample plus derived metrics.
type AnalysisInput struct {
	Info       SubredditInfo      `json:"info"`
	Posts      []Post             `json:"posts"`
	Engagement *EngagementMetrics `json:"engagement,omitempty"`
}

// TaskStatus is the lifecycle state of an analysis task.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a unit of analysis work. Owned by the queue; everyone else sees copies.
type Task struct {
	ID          string          `json:"id"`
	Subreddit   string          `json:"subreddit"`
	Status      TaskStatus      `json:"status"`
	Progress    int             `json:"progress"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	QueuedAt    time.Time       `json:"queued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Collector defines the interface for subreddit data fetching
type Collector interface {
	FetchSubredditInfo(ctx context.Context, subreddit string) (*SubredditInfo, error)
	FetchTopPosts(ctx context.Context, subreddit string, limit int) ([]Post, error)
}

// Refiner turns a heuristic statistical bundle into a refined strategic analysis.
type Refiner interface {
	Refine(ctx context.Context, input *AnalysisInput) (*AnalysisDetails, error)
}
