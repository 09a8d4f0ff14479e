// Package queue implements the bounded analysis task queue: one shared worker
// loop, FIFO dequeue, lifecycle broadcasting and a per-task watchdog. The
// manager is the single writer of task state; every other component sees
// copies or goes through a TaskHandle.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subpirate/analyzer/internal/domain"
	"github.com/subpirate/analyzer/internal/orchestrator"
)

// Runner executes one task. The queue discards the returned result if the
// task reached a terminal state while the runner was still going.
type Runner interface {
	Run(ctx context.Context, task domain.TaskHandle) (*domain.AnalysisResult, error)
}

// Manager owns the task set for this process. Construct one instance at the
// composition root and share it; there is deliberately no package-level
// singleton.
type Manager struct {
	runner   Runner
	capacity int
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	tasks     map[string]*domain.Task
	order     []string
	backlog   []string
	wake      chan struct{}
	cancels   map[string]context.CancelFunc
	watchdogs map[string]*time.Timer

	nextSubID    int
	progressSubs map[int]func(domain.Event)
	errorSubs    map[int]func(domain.Event)
	queueSubs    map[int]func([]domain.Task)

	started bool
}

// NewManager builds a queue with the given backlog bound (queued+processing)
// and per-task hard timeout.
func NewManager(runner Runner, capacity int, timeout time.Duration, logger *slog.Logger) *Manager {
	if capacity < 1 {
		capacity = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner:       runner,
		capacity:     capacity,
		timeout:      timeout,
		logger:       logger,
		tasks:        make(map[string]*domain.Task),
		wake:         make(chan struct{}, 1),
		cancels:      make(map[string]context.CancelFunc),
		watchdogs:    make(map[string]*time.Timer),
		progressSubs: make(map[int]func(domain.Event)),
		errorSubs:    make(map[int]func(domain.Event)),
		queueSubs:    make(map[int]func([]domain.Task)),
	}
}

// Start launches the single consumer loop. It returns immediately; the loop
// runs until ctx is cancelled, at which point every non-terminal task is
// failed as cancelled so none is silently dropped.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.loop(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.failAll(domain.ReasonCancelled)
			return
		case <-m.wake:
			for {
				id, ok := m.nextPending()
				if !ok {
					break
				}
				m.process(ctx, id)
			}
		}
	}
}

// nextPending pops backlog ids until one still waiting to run is found.
// Tasks cancelled while queued are already terminal and just get dropped here.
func (m *Manager) nextPending() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.backlog) > 0 {
		id := m.backlog[0]
		m.backlog = m.backlog[1:]
		if t, ok := m.tasks[id]; ok && t.Status == domain.StatusQueued {
			return id, true
		}
	}
	return "", false
}

// notify wakes the consumer loop. The buffer of one coalesces signals; the
// loop drains the whole backlog per wakeup, so a signal is never lost.
func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Enqueue admits a new analysis request. Fails fast with ErrQueueFull when
// queued+processing is at capacity and ErrDuplicateTask when the subreddit is
// already waiting in the queue.
func (m *Manager) Enqueue(subreddit string) (string, error) {
	name := orchestrator.NormalizeName(subreddit)
	if !orchestrator.ValidName(name) {
		tasksRejected.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("invalid subreddit name %q", subreddit)
	}

	m.mu.Lock()
	active := 0
	for _, t := range m.tasks {
		if !t.Status.Terminal() {
			active++
		}
	}
	if active >= m.capacity {
		m.mu.Unlock()
		tasksRejected.WithLabelValues("full").Inc()
		return "", domain.ErrQueueFull
	}
	for _, t := range m.tasks {
		if t.Subreddit == name && t.Status == domain.StatusQueued {
			m.mu.Unlock()
			tasksRejected.WithLabelValues("duplicate").Inc()
			return "", domain.ErrDuplicateTask
		}
	}

	task := &domain.Task{
		ID:        uuid.NewString(),
		Subreddit: name,
		Status:    domain.StatusQueued,
		QueuedAt:  time.Now(),
	}
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	m.backlog = append(m.backlog, task.ID)
	m.mu.Unlock()

	m.notify()
	tasksEnqueued.Inc()
	m.logger.Info("task enqueued", "task", task.ID, "subreddit", name)
	m.broadcastProgress(domain.Event{Type: domain.EventQueued, TaskID: task.ID, Subreddit: name})
	m.broadcastQueue()
	return task.ID, nil
}

// Cancel transitions a queued or processing task to failed with a
// cancellation reason. An in-flight network call is not aborted forcibly; its
// result is discarded when the runner returns.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if t.Status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("task %s already %s", id, t.Status)
	}
	m.mu.Unlock()

	m.forceFail(id, domain.ReasonCancelled)
	return nil
}

// Snapshot returns a copy of all tasks in enqueue order.
func (m *Manager) Snapshot() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() []domain.Task {
	out := make([]domain.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneTask(m.tasks[id]))
	}
	return out
}

// cloneTask copies a task including its result struct, so holders cannot
// reach back into queue state. Slices inside the result stay shared and are
// read-only by contract.
func cloneTask(t *domain.Task) domain.Task {
	out := *t
	if t.Result != nil {
		r := *t.Result
		out.Result = &r
	}
	return out
}

// Task returns a copy of one task.
func (m *Manager) Task(id string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// SubscribeProgress registers a callback for lifecycle events (queued,
// progress, basic analysis, completed). Returns an unsubscribe func.
func (m *Manager) SubscribeProgress(cb func(domain.Event)) func() {
	return m.subscribe(m.progressSubs, cb)
}

// SubscribeError registers a callback for failure events.
func (m *Manager) SubscribeError(cb func(domain.Event)) func() {
	return m.subscribe(m.errorSubs, cb)
}

// SubscribeQueueChanged registers a snapshot callback and invokes it once
// immediately so subscribers never miss the initial state.
func (m *Manager) SubscribeQueueChanged(cb func([]domain.Task)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.queueSubs[id] = cb
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	cb(snapshot)
	return func() {
		m.mu.Lock()
		delete(m.queueSubs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) subscribe(subs map[int]func(domain.Event), cb func(domain.Event)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	subs[id] = cb
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(subs, id)
		m.mu.Unlock()
	}
}

// process runs one dequeued task to a terminal state.
func (m *Manager) process(ctx context.Context, id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.Status != domain.StatusQueued {
		// Cancelled while still queued; skip it.
		m.mu.Unlock()
		return
	}
	now := time.Now()
	t.Status = domain.StatusProcessing
	t.StartedAt = &now

	taskCtx, cancel := context.WithCancel(ctx)
	m.cancels[id] = cancel
	// Hard safety net independent of the pipeline's own timers.
	m.watchdogs[id] = time.AfterFunc(m.timeout, func() {
		m.forceFail(id, domain.ReasonTimeout)
	})
	m.mu.Unlock()

	m.logger.Info("task processing", "task", id, "subreddit", t.Subreddit)
	m.broadcastQueue()

	result, err := m.runner.Run(taskCtx, &handle{m: m, id: id, subreddit: t.Subreddit})
	m.finish(id, result, err)
}

// finish commits the runner outcome unless the task already reached a
// terminal state (cancel or watchdog won the race); late results are
// discarded.
func (m *Manager) finish(id string, result *domain.AnalysisResult, err error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.Status.Terminal() {
		m.cleanupLocked(id)
		m.mu.Unlock()
		if result != nil {
			m.logger.Info("discarding late result for finished task", "task", id)
		}
		return
	}

	now := time.Now()
	t.CompletedAt = &now
	var ev domain.Event
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.Canceled) {
			reason = domain.ReasonCancelled
		}
		t.Status = domain.StatusFailed
		t.Error = reason
		ev = domain.Event{Type: domain.EventFailed, TaskID: id, Subreddit: t.Subreddit, Err: reason}
	} else {
		t.Status = domain.StatusCompleted
		t.Progress = 100
		t.Result = result
		ev = domain.Event{Type: domain.EventCompleted, TaskID: id, Subreddit: t.Subreddit, Progress: 100, Result: result}
	}
	m.cleanupLocked(id)
	m.mu.Unlock()

	if ev.Type == domain.EventFailed {
		tasksFailed.Inc()
		m.logger.Warn("task failed", "task", id, "subreddit", ev.Subreddit, "err", ev.Err)
		m.broadcastError(ev)
	} else {
		tasksCompleted.Inc()
		m.logger.Info("task completed", "task", id, "subreddit", ev.Subreddit)
		m.broadcastProgress(ev)
	}
	m.broadcastQueue()
}

// forceFail moves a task to failed regardless of what the runner is doing.
// Used by Cancel, the watchdog and shutdown drain.
func (m *Manager) forceFail(id, reason string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	t.Status = domain.StatusFailed
	t.Error = reason
	t.CompletedAt = &now
	if cancel, ok := m.cancels[id]; ok {
		cancel()
	}
	m.cleanupLocked(id)
	subreddit := t.Subreddit
	m.mu.Unlock()

	tasksFailed.Inc()
	m.logger.Warn("task force-failed", "task", id, "subreddit", subreddit, "reason", reason)
	m.broadcastError(domain.Event{Type: domain.EventFailed, TaskID: id, Subreddit: subreddit, Err: reason})
	m.broadcastQueue()
}

func (m *Manager) failAll(reason string) {
	m.mu.Lock()
	var ids []string
	for id, t := range m.tasks {
		if !t.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.forceFail(id, reason)
	}
}

func (m *Manager) cleanupLocked(id string) {
	if w, ok := m.watchdogs[id]; ok {
		w.Stop()
		delete(m.watchdogs, id)
	}
	if cancel, ok := m.cancels[id]; ok {
		delete(m.cancels, id)
		// Release the context resources; the runner has already returned or
		// will observe cancellation.
		cancel()
	}
}

// Broadcast helpers copy the subscriber list under the lock and invoke
// callbacks outside it, so a callback may safely call back into the manager.
func (m *Manager) broadcastProgress(ev domain.Event) {
	m.mu.Lock()
	cbs := make([]func(domain.Event), 0, len(m.progressSubs))
	for _, cb := range m.progressSubs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

func (m *Manager) broadcastError(ev domain.Event) {
	m.mu.Lock()
	cbs := make([]func(domain.Event), 0, len(m.errorSubs))
	for _, cb := range m.errorSubs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

func (m *Manager) broadcastQueue() {
	m.mu.Lock()
	snapshot := m.snapshotLocked()
	cbs := make([]func([]domain.Task), 0, len(m.queueSubs))
	for _, cb := range m.queueSubs {
		cbs = append(cbs, cb)
	}
	m.mu.Unlock()
	for _, cb := range cbs {
		cb(snapshot)
	}
}

// handle is the TaskHandle implementation handed to the runner.
type handle struct {
	m         *Manager
	id        string
	subreddit string
}

func (h *handle) ID() string        { return h.id }
func (h *handle) Subreddit() string { return h.subreddit }

func (h *handle) SetProgress(progress int) {
	h.m.mu.Lock()
	t, ok := h.m.tasks[h.id]
	if !ok || t.Status.Terminal() || progress <= t.Progress {
		h.m.mu.Unlock()
		return
	}
	t.Progress = progress
	h.m.mu.Unlock()

	h.m.broadcastProgress(domain.Event{
		Type:      domain.EventProgress,
		TaskID:    h.id,
		Subreddit: h.subreddit,
		Progress:  progress,
	})
	h.m.broadcastQueue()
}

func (h *handle) DeliverBasic(result *domain.AnalysisResult) {
	h.m.mu.Lock()
	t, ok := h.m.tasks[h.id]
	terminal := !ok || t.Status.Terminal()
	var progress int
	if ok {
		progress = t.Progress
	}
	h.m.mu.Unlock()
	if terminal {
		return
	}
	h.m.broadcastProgress(domain.Event{
		Type:      domain.EventBasicAnalysis,
		TaskID:    h.id,
		Subreddit: h.subreddit,
		Progress:  progress,
		Result:    result,
	})
}

func (h *handle) Cancelled() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	t, ok := h.m.tasks[h.id]
	return !ok || t.Status.Terminal()
}
