package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subpirate/analyzer/internal/domain"
)

type fakeCollector struct {
	mu         sync.Mutex
	infoCalls  int
	postsCalls int
	infoErr    error
	postsErr   error
	posts      []domain.Post
}

func (f *fakeCollector) FetchSubredditInfo(ctx context.Context, name string) (*domain.SubredditInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &domain.SubredditInfo{
		Name:        name,
		Subscribers: 100000,
		ActiveUsers: 800,
		Rules:       []domain.Rule{{Title: "Be civil"}},
	}, nil
}

func (f *fakeCollector) FetchTopPosts(ctx context.Context, name string, limit int) ([]domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postsCalls++
	if f.postsErr != nil {
		return nil, f.postsErr
	}
	return f.posts, nil
}

func recentPosts(n int) []domain.Post {
	posts := make([]domain.Post, n)
	for i := range posts {
		posts[i] = domain.Post{
			ID:           fmt.Sprintf("p%d", i),
			Title:        fmt.Sprintf("What do you think about topic %d?", i),
			Score:        100 + i,
			CommentCount: 10,
			CreatedUTC:   float64(time.Now().Add(-time.Hour).Unix()),
			IsSelf:       true,
		}
	}
	return posts
}

type fakeRefiner struct {
	mu       sync.Mutex
	calls    int
	failures int
	details  *domain.AnalysisDetails
}

func (f *fakeRefiner) Refine(ctx context.Context, input *domain.AnalysisInput) (*domain.AnalysisDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, &domain.AIAnalysisError{Message: "upstream busy", Status: 503}
	}
	return f.details, nil
}

func (f *fakeRefiner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHandle struct {
	mu        sync.Mutex
	subreddit string
	cancelled bool
	progress  []int
	basic     *domain.AnalysisResult
}

func (h *fakeHandle) ID() string        { return "task-1" }
func (h *fakeHandle) Subreddit() string { return h.subreddit }

func (h *fakeHandle) SetProgress(p int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = append(h.progress, p)
}

func (h *fakeHandle) DeliverBasic(r *domain.AnalysisResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.basic = r
}

func (h *fakeHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func refinedDetails() *domain.AnalysisDetails {
	return &domain.AnalysisDetails{
		MarketingFriendliness: domain.MarketingFriendliness{
			Score:           91,
			Reasons:         []string{"ai reason"},
			Recommendations: []string{"ai recommendation"},
		},
		ContentStrategy: domain.ContentStrategy{
			RecommendedTypes: []string{"video"},
			Topics:           []string{"ai-topic"},
			Style:            "casual",
			Dos:              []string{"ai do"},
			Donts:            []string{"ai dont"},
		},
		TitleTemplates: domain.TitleTemplates{
			Patterns:      []string{"short punchy question"},
			Examples:      []string{"Is this the way?"},
			Effectiveness: 80,
		},
		StrategicAnalysis: domain.StrategicAnalysis{Strengths: []string{"ai strength"}},
		GamePlan:          domain.GamePlan{Immediate: []string{"ai step"}},
	}
}

func testOptions() Options {
	return Options{AIRetries: 2, BackoffBase: time.Millisecond, CacheTTL: time.Minute}
}

func TestRunMergesRefinement(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	refiner := &fakeRefiner{details: refinedDetails()}
	handle := &fakeHandle{subreddit: "golang"}

	orch := New(source, refiner, testOptions(), nil)
	result, err := orch.Run(context.Background(), handle)
	require.NoError(t, err)

	assert.Equal(t, 91, result.Analysis.MarketingFriendliness.Score)
	assert.Equal(t, []string{"ai strength"}, result.Analysis.StrategicAnalysis.Strengths)
	assert.Equal(t, "casual", result.Analysis.ContentStrategy.Style)

	// Recommended types stay heuristic: they come from observed post data.
	assert.NotEqual(t, []string{"video"}, result.Analysis.ContentStrategy.RecommendedTypes)

	// AI patterns get the canonical prefix.
	assert.Equal(t, []string{"Title format: short punchy question"}, result.Analysis.TitleTemplates.Patterns)

	// The heuristic result was delivered before refinement finished.
	require.NotNil(t, handle.basic)

	assert.Equal(t, 100, handle.progress[len(handle.progress)-1])
	assert.True(t, sortedAscending(handle.progress), "progress must never regress: %v", handle.progress)
}

func sortedAscending(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	refiner := &fakeRefiner{failures: 2, details: refinedDetails()}
	handle := &fakeHandle{subreddit: "golang"}

	orch := New(source, refiner, testOptions(), nil)
	result, err := orch.Run(context.Background(), handle)
	require.NoError(t, err)

	assert.Equal(t, 3, refiner.callCount())
	assert.Equal(t, 91, result.Analysis.MarketingFriendliness.Score)
}

func TestRunDegradesWhenRefinementExhausted(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	refiner := &fakeRefiner{failures: 10}
	handle := &fakeHandle{subreddit: "golang"}

	orch := New(source, refiner, testOptions(), nil)
	result, err := orch.Run(context.Background(), handle)
	require.NoError(t, err, "exhausted refinement must not fail the task")

	assert.Equal(t, 3, refiner.callCount(), "1 attempt + 2 retries")
	recs := result.Analysis.MarketingFriendliness.Recommendations
	assert.Contains(t, recs, degradedNotice)
}

func TestRunSkipsRefinerWithoutPosts(t *testing.T) {
	source := &fakeCollector{}
	refiner := &fakeRefiner{details: refinedDetails()}
	handle := &fakeHandle{subreddit: "golang"}

	orch := New(source, refiner, testOptions(), nil)
	result, err := orch.Run(context.Background(), handle)
	require.NoError(t, err)

	assert.Zero(t, refiner.callCount())
	assert.Equal(t, 50, result.Analysis.MarketingFriendliness.Score)
}

func TestRunHeuristicOnlyWithNilRefiner(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	handle := &fakeHandle{subreddit: "golang"}

	orch := New(source, nil, testOptions(), nil)
	result, err := orch.Run(context.Background(), handle)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Analysis.MarketingFriendliness.Reasons)
}

func TestRunCachesResults(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	orch := New(source, nil, testOptions(), nil)

	_, err := orch.Run(context.Background(), &fakeHandle{subreddit: "golang"})
	require.NoError(t, err)

	second := &fakeHandle{subreddit: "r/GoLang"}
	result, err := orch.Run(context.Background(), second)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, source.infoCalls, "cache hit must skip the collector")
	assert.Equal(t, []int{0, 100}, second.progress)
}

func TestRunInvalidName(t *testing.T) {
	orch := New(&fakeCollector{}, nil, testOptions(), nil)
	for _, name := range []string{"", "ab", "has space", "way-too-long-name-over-limit", "bad/chars"} {
		_, err := orch.Run(context.Background(), &fakeHandle{subreddit: name})
		assert.Error(t, err, name)
	}
}

func TestRunFetchErrorFailsTask(t *testing.T) {
	notFound := &domain.NotFoundError{Subreddit: "ghost"}
	source := &fakeCollector{infoErr: notFound}

	orch := New(source, nil, testOptions(), nil)
	_, err := orch.Run(context.Background(), &fakeHandle{subreddit: "ghost"})
	require.Error(t, err)

	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf), "wrapped error must stay inspectable")
}

func TestRunCancelledBetweenPhases(t *testing.T) {
	source := &fakeCollector{posts: recentPosts(60)}
	handle := &fakeHandle{subreddit: "golang", cancelled: true}

	orch := New(source, nil, testOptions(), nil)
	_, err := orch.Run(context.Background(), handle)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"golang", "golang"},
		{"GoLang", "golang"},
		{"r/golang", "golang"},
		{"/r/GoLang", "golang"},
		{"  golang  ", "golang"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeName(tt.in), tt.in)
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("golang"))
	assert.True(t, ValidName("ask_reddit"))
	assert.True(t, ValidName("abc"))
	assert.False(t, ValidName("ab"))
	assert.False(t, ValidName("name with spaces"))
	assert.False(t, ValidName("0123456789012345678901"))
	assert.False(t, ValidName(""))
}
