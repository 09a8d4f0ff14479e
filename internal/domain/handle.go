package domain

// TaskHandle is the queue-owned view of a running task handed to the
// pipeline. The pipeline reports through it and never touches task state
// directly; the queue stays the single writer.
type TaskHandle interface {
	ID() string
	Subreddit() string
	// SetProgress reports a checkpoint. Regressions and updates to terminal
	// tasks are ignored, so observed progress is monotonically non-decreasing.
	SetProgress(progress int)
	// DeliverBasic publishes the heuristic-only result so callers get fast
	// feedback while refinement is still running.
	DeliverBasic(result *AnalysisResult)
	// Cancelled reports whether the task was cancelled or force-failed; the
	// pipeline checks it between phases and before committing results.
	Cancelled() bool
}
