package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/subpirate/analyzer/internal/domain"
)

// ResultRecord is one persisted analysis, keyed by subreddit name. Consumers
// doing upserts use the subreddit field; this writer only appends.
type ResultRecord struct {
	Subreddit  string                 `json:"subreddit"`
	AnalyzedAt time.Time              `json:"analyzed_at"`
	Result     *domain.AnalysisResult `json:"result"`
}

// WriterService appends completed analyses to an NDJSON file. Single consumer
// of its input channel, so no locking is needed around the file.
type WriterService struct {
	FilePath string
	Logger   *slog.Logger
}

// Start consumes queue events and appends every completed result as NDJSON.
// Call with the channel fed by a progress subscription; close it to stop.
func (w *WriterService) Start(wg *sync.WaitGroup, input <-chan domain.Event) {
	defer wg.Done()

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(w.FilePath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	f, err := os.OpenFile(w.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Error("opening results file, dropping completed results", "path", w.FilePath, "err", err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)

	for ev := range input {
		if ev.Type != domain.EventCompleted || ev.Result == nil {
			continue
		}
		enc.Encode(ResultRecord{
			Subreddit:  ev.Subreddit,
			AnalyzedAt: time.Now(),
			Result:     ev.Result,
		})
	}
}
