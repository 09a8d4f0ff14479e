package domain

// EventType tags queue lifecycle events.
type EventType string

const (
	EventQueued        EventType = "queued"
	EventProgress      EventType = "progress"
	EventBasicAnalysis EventType = "basic_analysis"
	EventCompleted     EventType = "completed"
	EventFailed        EventType = "failed"
)

// Event is the single tagged union broadcast to subscribers. Each variant
// carries exactly the fields it needs:
//
//	Queued        - TaskID, Subreddit
//	Progress      - TaskID, Subreddit, Progress
//	BasicAnalysis - TaskID, Subreddit, Result (heuristic-only, pre-refinement)
//	Completed     - TaskID, Subreddit, Result
//	Failed        - TaskID, Subreddit, Err
type Event struct {
	Type      EventType       `json:"type"`
	TaskID    string          `json:"task_id"`
	Subreddit string          `json:"subreddit"`
	Progress  int             `json:"progress,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Err       string          `json:"error,omitempty"`
}
