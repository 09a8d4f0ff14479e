package domain

import (
	"errors"
	"fmt"
)

// Admission errors returned synchronously by the queue.
var (
	ErrQueueFull     = errors.New("analysis queue is full")
	ErrDuplicateTask = errors.New("subreddit is already queued for analysis")
	ErrTaskNotFound  = errors.New("no such task")
)

// Terminal task error reasons. Stored on Task.Error so the UI can tell a
// user-initiated cancel apart from a real failure.
const (
	ReasonCancelled = "cancelled"
	ReasonTimeout   = "timeout"
)

// NotFoundError indicates the subreddit does not exist or is private.
type NotFoundError struct {
	Subreddit string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("subreddit %q not found", e.Subreddit)
}

// RateLimitError indicates the data source rejected us for requesting too fast.
type RateLimitError struct {
	Subreddit string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited while fetching %q", e.Subreddit)
}

// AIAnalysisError is returned by the refinement client on transport, HTTP or
// decode failures. Status is zero when the request never got a response.
type AIAnalysisError struct {
	Message string
	Status  int
}

func (e *AIAnalysisError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai analysis failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ai analysis failed: %s", e.Message)
}
