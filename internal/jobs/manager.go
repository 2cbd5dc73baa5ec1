package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/queue"
)

var ErrRunNotFound = errors.New("run not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run represents a scraping run
type Run struct {
	ID          string            `json:"id"`
	Sections    []string          `json:"sections"`
	Mode        catalog.Mode      `json:"mode"`
	Status      Status            `json:"status"`
	Records     map[string]int    `json:"records"`
	Files       map[string]string `json:"files"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`

	sections []catalog.Section
}

func (r *Run) snapshot() *Run {
	c := *r
	c.Sections = append([]string(nil), r.Sections...)
	c.Records = maps.Clone(r.Records)
	c.Files = maps.Clone(r.Files)
	c.sections = nil
	return &c
}

// Manager queues runs and executes them one at a time. Runs live in memory
// for the lifetime of the process.
type Manager struct {
	executor    Executor
	sections    []catalog.Section
	defaultMode catalog.Mode
	queue       queue.Queue
	logger      *slog.Logger

	mu   sync.RWMutex
	runs map[string]*Run

	stopped  chan struct{}
	stopOnce sync.Once
}

func NewManager(executor Executor, sections []catalog.Section, defaultMode catalog.Mode, q queue.Queue, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if q == nil {
		q = queue.NewInMemoryQueue()
	}

	return &Manager{
		executor:    executor,
		sections:    sections,
		defaultMode: defaultMode,
		queue:       q,
		logger:      logger.With("component", "job_manager"),
		runs:        make(map[string]*Run),
		stopped:     make(chan struct{}),
	}
}

// Sections returns the registry runs can pick from.
func (m *Manager) Sections() []catalog.Section {
	return append([]catalog.Section(nil), m.sections...)
}

// Submit validates and queues a run. An empty section list means every
// section; an empty mode means the default mode.
func (m *Manager) Submit(ctx context.Context, sectionNames []string, mode string) (*Run, error) {
	selected, err := catalog.Select(m.sections, sectionNames)
	if err != nil {
		return nil, err
	}

	runMode := m.defaultMode
	if mode != "" {
		if runMode, err = catalog.ParseMode(mode); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(selected))
	for _, s := range selected {
		names = append(names, s.Name)
	}

	run := &Run{
		ID:        uuid.New().String(),
		Sections:  names,
		Mode:      runMode,
		Status:    StatusPending,
		Records:   make(map[string]int),
		Files:     make(map[string]string),
		CreatedAt: time.Now(),
		sections:  selected,
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	snapshot := run.snapshot()
	m.mu.Unlock()

	if err := m.queue.Push(&queue.Task{RunID: run.ID, CreatedAt: run.CreatedAt}); err != nil {
		m.mu.Lock()
		delete(m.runs, run.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue run: %w", err)
	}

	m.logger.Info("run queued", "id", run.ID, "sections", names, "mode", runMode)
	return snapshot, nil
}

func (m *Manager) Get(_ context.Context, runID string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run.snapshot(), nil
}

// List returns every run, newest first.
func (m *Manager) List(_ context.Context) []*Run {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs
}

// StartWorker executes queued runs until ctx is done or the queue closes.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("run worker started")
	defer m.stopOnce.Do(func() { close(m.stopped) })

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				m.logger.Info("run worker stopping")
				return
			}
			m.logger.Error("failed to take next run", "error", err)
			continue
		}

		m.process(ctx, task.RunID)
	}
}

// Close stops accepting runs; the worker drains the queue and exits.
func (m *Manager) Close() error {
	return m.queue.Close()
}

// Shutdown closes the queue and waits for the worker to finish the runs
// already queued. It returns ctx.Err() if ctx ends first; the caller then
// cancels the worker's context to abort what is left.
func (m *Manager) Shutdown(ctx context.Context) error {
	if err := m.Close(); err != nil {
		return fmt.Errorf("failed to close run queue: %w", err)
	}

	select {
	case <-m.stopped:
		m.logger.Info("run queue drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) process(ctx context.Context, runID string) {
	m.mu.Lock()
	run, ok := m.runs[runID]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("queued run vanished", "id", runID)
		return
	}
	now := time.Now()
	run.Status = StatusRunning
	run.StartedAt = &now
	mode, sections := run.Mode, run.sections
	m.mu.Unlock()

	m.logger.Info("processing run", "id", runID, "mode", mode)

	_, err := m.executor.Execute(ctx, runID, mode, sections, func(res SectionResult) {
		m.mu.Lock()
		run.Records[res.Section] = res.Records
		run.Files[res.Section] = res.File
		m.mu.Unlock()
	})

	m.mu.Lock()
	done := time.Now()
	run.CompletedAt = &done
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	} else {
		run.Status = StatusCompleted
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("run failed", "id", runID, "error", err)
		return
	}
	m.logger.Info("run completed", "id", runID, "duration", done.Sub(now))
}
