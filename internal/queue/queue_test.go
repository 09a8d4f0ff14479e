package queue

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

// stubRunner records the order tasks reach it and returns a canned outcome.
type stubRunner struct {
	mu     sync.Mutex
	ran    []string
	result *domain.AnalysisResult
	err    error

	// when set, Run blocks until the task context is cancelled
	blockOnCtx bool
}

func (r *stubRunner) Run(ctx context.Context, task domain.TaskHandle) (*domain.AnalysisResult, error) {
	r.mu.Lock()
	r.ran = append(r.ran, task.Subreddit())
	r.mu.Unlock()

	if r.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	task.SetProgress(50)
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &domain.AnalysisResult{
		Info: domain.SubredditInfo{Name: task.Subreddit()},
	}, nil
}

func (r *stubRunner) ranOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

// eventRecorder collects manager events safely across goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *eventRecorder) record(ev domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventRecorder) ofType(t domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, ev := range e.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// gatedRunner holds every task until the gate closes, so tests can pin the
// worker mid-task.
type gatedRunner struct {
	mu   sync.Mutex
	ran  []string
	gate chan struct{}
}

func (r *gatedRunner) Run(ctx context.Context, task domain.TaskHandle) (*domain.AnalysisResult, error) {
	r.mu.Lock()
	r.ran = append(r.ran, task.Subreddit())
	r.mu.Unlock()

	select {
	case <-r.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &domain.AnalysisResult{Info: domain.SubredditInfo{Name: task.Subreddit()}}, nil
}

func (r *gatedRunner) ranOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func TestEnqueueCapacityBound(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)

	for i := 0; i < 5; i++ {
		_, err := m.Enqueue(fmt.Sprintf("subreddit_%d", i))
		require.NoError(t, err)
	}

	_, err := m.Enqueue("one_too_many")
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestEnqueueAfterCancellingQueuedTasks(t *testing.T) {
	// Cancelled queued tasks must free their admission slots without clogging
	// dispatch: enqueues afterwards return promptly and run to completion.
	runner := &gatedRunner{gate: make(chan struct{})}
	m := NewManager(runner, 3, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	_, err := m.Enqueue("pinned_sub")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(runner.ranOrder()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancelA, err := m.Enqueue("first_sub")
	require.NoError(t, err)
	cancelB, err := m.Enqueue("second_sub")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(cancelA))
	require.NoError(t, m.Cancel(cancelB))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := m.Enqueue("third_sub")
		assert.NoError(t, err)
		_, err = m.Enqueue("fourth_sub")
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked after cancelling queued tasks")
	}

	close(runner.gate)
	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"pinned_sub", "third_sub", "fourth_sub"}, runner.ranOrder(),
		"cancelled tasks must never reach the runner")
}

func TestEnqueueDuplicateQueuedSubreddit(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)

	_, err := m.Enqueue("golang")
	require.NoError(t, err)

	_, err = m.Enqueue("r/GoLang")
	assert.ErrorIs(t, err, domain.ErrDuplicateTask, "normalized names must collide")
}

func TestEnqueueInvalidName(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)

	for _, name := range []string{"", "ab", "bad name", "bad/slashes"} {
		_, err := m.Enqueue(name)
		assert.Error(t, err, name)
		assert.NotErrorIs(t, err, domain.ErrQueueFull)
	}
}

func TestTasksRunInFIFOOrder(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	names := []string{"first_sub", "second_sub", "third_sub"}
	for _, n := range names {
		_, err := m.Enqueue(n)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, names, runner.ranOrder())
}

func TestCompletedTasksFreeCapacity(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 1, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	_, err := m.Enqueue("first_sub")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = m.Enqueue("second_sub")
	assert.NoError(t, err, "a terminal task must no longer count against capacity")
}

func TestCompletedTaskCarriesResult(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.Result)
	assert.Equal(t, "golang", task.Result.Info.Name)
	require.NotNil(t, task.CompletedAt)
}

func TestFailedTaskEmitsErrorEvent(t *testing.T) {
	runner := &stubRunner{err: errors.New("subreddit exploded")}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeError(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventFailed)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failed := recorder.ofType(domain.EventFailed)[0]
	assert.Equal(t, id, failed.TaskID)
	assert.Contains(t, failed.Err, "subreddit exploded")

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
}

func TestCancelQueuedTaskIsSkipped(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 5, time.Minute, nil)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(id))

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Equal(t, domain.ReasonCancelled, task.Error)

	// Starting afterwards must not resurrect the cancelled task.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, runner.ranOrder())
}

func TestCancelProcessingTaskDiscardsResult(t *testing.T) {
	runner := &stubRunner{blockOnCtx: true}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeError(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, err := m.Task(id)
		return err == nil && task.Status == domain.StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Cancel(id))

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventFailed)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Equal(t, domain.ReasonCancelled, task.Error)
	assert.Nil(t, task.Result)
}

func TestCancelUnknownTask(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)
	assert.ErrorIs(t, m.Cancel("nope"), domain.ErrTaskNotFound)
}

func TestCancelTerminalTask(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)
	id, err := m.Enqueue("golang")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(id))

	assert.Error(t, m.Cancel(id), "cancelling twice must fail")
}

func TestWatchdogTimesOutStuckTask(t *testing.T) {
	runner := &stubRunner{blockOnCtx: true}
	m := NewManager(runner, 5, 30*time.Millisecond, nil)

	recorder := &eventRecorder{}
	m.SubscribeError(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventFailed)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, task.Status)
	assert.Equal(t, domain.ReasonTimeout, task.Error)
}

func TestShutdownFailsPendingTasks(t *testing.T) {
	runner := &stubRunner{blockOnCtx: true}
	m := NewManager(runner, 5, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, err := m.Task(id)
		return err == nil && task.Status == domain.StatusProcessing
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		task, err := m.Task(id)
		return err == nil && task.Status == domain.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	task, _ := m.Task(id)
	assert.Equal(t, domain.ReasonCancelled, task.Error)
}

func TestSnapshotPreservesEnqueueOrder(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)

	names := []string{"first_sub", "second_sub", "third_sub"}
	for _, n := range names {
		_, err := m.Enqueue(n)
		require.NoError(t, err)
	}

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 3)
	for i, task := range snapshot {
		assert.Equal(t, names[i], task.Subreddit)
		assert.Equal(t, domain.StatusQueued, task.Status)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)
	_, err := m.Enqueue("golang")
	require.NoError(t, err)

	snapshot := m.Snapshot()
	snapshot[0].Subreddit = "mutated"

	again := m.Snapshot()
	assert.Equal(t, "golang", again[0].Subreddit)
}

func TestSnapshotResultIsDetached(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot[0].Result)
	snapshot[0].Result.Analysis.MarketingFriendliness.Score = -1

	task, err := m.Task(id)
	require.NoError(t, err)
	assert.NotEqual(t, -1, task.Result.Analysis.MarketingFriendliness.Score)
}

func TestSubscribeQueueChangedImmediateSnapshot(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)
	_, err := m.Enqueue("golang")
	require.NoError(t, err)

	var got []domain.Task
	unsub := m.SubscribeQueueChanged(func(tasks []domain.Task) {
		if got == nil {
			got = tasks
		}
	})
	defer unsub()

	require.Len(t, got, 1, "subscriber must see the current state right away")
	assert.Equal(t, "golang", got[0].Subreddit)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	m := NewManager(&stubRunner{}, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	unsub := m.SubscribeProgress(recorder.record)
	unsub()

	_, err := m.Enqueue("golang")
	require.NoError(t, err)

	assert.Empty(t, recorder.ofType(domain.EventQueued))
}

func TestProgressEventsReachSubscribers(t *testing.T) {
	runner := &stubRunner{}
	m := NewManager(runner, 5, time.Minute, nil)

	recorder := &eventRecorder{}
	m.SubscribeProgress(recorder.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Enqueue("golang")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(recorder.ofType(domain.EventCompleted)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	queued := recorder.ofType(domain.EventQueued)
	require.Len(t, queued, 1)
	assert.Equal(t, id, queued[0].TaskID)

	progress := recorder.ofType(domain.EventProgress)
	require.NotEmpty(t, progress)
	assert.Equal(t, 50, progress[0].Progress)
}
