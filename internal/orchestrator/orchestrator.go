// Package orchestrator drives one analysis task through its phases: fetch
// info, fetch posts, heuristic analysis, AI refinement, merge. The heuristic
// result is delivered as soon as it exists; the AI phase can only improve on
// it, never fail the task.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/subpirate/analyzer/internal/domain"
	"github.com/subpirate/analyzer/internal/heuristic"
)

// Progress checkpoints reported through the task handle.
const (
	progressStart     = 0
	progressInfo      = 20
	progressPosts     = 40
	progressPrepared  = 45
	progressHeuristic = 50
	progressAIBase    = 55
	progressAIStep    = 8
	progressDone      = 100
)

const degradedNotice = "Detailed AI analysis was unavailable; recommendations are based on statistical analysis only"

// Same validation the ingest path applies to CSV input.
var subNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,21}$`)

// Options tunes pipeline behavior.
type Options struct {
	AIRetries       int           // retries after the first attempt
	BackoffBase     time.Duration // first retry delay, doubled per attempt
	CacheTTL        time.Duration
	PostSampleLimit int // how many posts to request from the collector
}

// Orchestrator runs the two-phase analysis pipeline.
type Orchestrator struct {
	collector domain.Collector
	refiner   domain.Refiner
	cache     *gocache.Cache
	opts      Options
	logger    *slog.Logger
}

// New builds an orchestrator. refiner may be nil, in which case every task
// completes with the heuristic result alone.
func New(collector domain.Collector, refiner domain.Refiner, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.AIRetries < 0 {
		opts.AIRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.PostSampleLimit <= 0 {
		opts.PostSampleLimit = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		collector: collector,
		refiner:   refiner,
		cache:     gocache.New(opts.CacheTTL, 10*time.Minute),
		opts:      opts,
		logger:    logger,
	}
}

// NormalizeName lower-cases a subreddit name and strips an "r/" prefix.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.TrimPrefix(name, "/r/")
	return strings.TrimPrefix(name, "r/")
}

// ValidName reports whether the normalized name is a plausible subreddit name.
func ValidName(name string) bool {
	return subNameRegex.MatchString(name)
}

// Run executes the pipeline for one task. The returned result is only
// committed by the queue if the task has not been cancelled or timed out in
// the meantime; late results from cancelled tasks are discarded there.
func (o *Orchestrator) Run(ctx context.Context, task domain.TaskHandle) (*domain.AnalysisResult, error) {
	name := NormalizeName(task.Subreddit())
	if !ValidName(name) {
		return nil, fmt.Errorf("invalid subreddit name %q", task.Subreddit())
	}
	task.SetProgress(progressStart)

	if cached, ok := o.cache.Get(name); ok {
		o.logger.Info("analysis cache hit", "subreddit", name)
		task.SetProgress(progressDone)
		return cached.(*domain.AnalysisResult), nil
	}

	info, err := o.collector.FetchSubredditInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching subreddit info: %w", err)
	}
	task.SetProgress(progressInfo)
	if task.Cancelled() {
		return nil, context.Canceled
	}

	posts, err := o.collector.FetchTopPosts(ctx, name, o.opts.PostSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching posts: %w", err)
	}
	task.SetProgress(progressPosts)
	if task.Cancelled() {
		return nil, context.Canceled
	}

	input := heuristic.Prepare(info, posts)
	task.SetProgress(progressPrepared)

	result := heuristic.Analyze(input)
	task.SetProgress(progressHeuristic)
	task.DeliverBasic(result)
	if task.Cancelled() {
		return nil, context.Canceled
	}

	// Phase 2. Never fails the task: exhausted retries degrade to the
	// heuristic result with a notice appended.
	if o.refiner != nil && len(input.Posts) > 0 {
		refined, err := o.refineWithRetry(ctx, task, input)
		switch {
		case err == nil:
			result.Analysis = mergeAnalysis(result.Analysis, refined)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			o.logger.Warn("ai refinement exhausted, completing with heuristic result",
				"subreddit", name, "err", err)
			result.Analysis.MarketingFriendliness.Recommendations = append(
				result.Analysis.MarketingFriendliness.Recommendations, degradedNotice)
		}
	}

	if task.Cancelled() {
		return nil, context.Canceled
	}
	o.cache.Set(name, result, o.opts.CacheTTL)
	task.SetProgress(progressDone)
	return result, nil
}

// refineWithRetry attempts the AI call with exponential backoff (base delay
// doubled per retry), reporting progress per attempt in the 55-80 band.
func (o *Orchestrator) refineWithRetry(ctx context.Context, task domain.TaskHandle, input *domain.AnalysisInput) (*domain.AnalysisDetails, error) {
	attempts := o.opts.AIRetries + 1
	var lastErr error
	delay := o.opts.BackoffBase

	for attempt := 0; attempt < attempts; attempt++ {
		task.SetProgress(progressAIBase + attempt*progressAIStep)
		if task.Cancelled() {
			return nil, context.Canceled
		}

		refined, err := o.refiner.Refine(ctx, input)
		if err == nil {
			return refined, nil
		}
		lastErr = err
		o.logger.Warn("ai refinement attempt failed",
			"subreddit", input.Info.Name, "attempt", attempt+1, "attempts", attempts, "err", err)

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return nil, lastErr
}
