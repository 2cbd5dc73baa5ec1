package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/scraper"
)

// Executor performs one run end to end.
type Executor interface {
	Execute(ctx context.Context, runID string, mode catalog.Mode, sections []catalog.Section, onSection func(SectionResult)) ([]SectionResult, error)
}

// OpenFunc starts a fresh browser session.
type OpenFunc func(ctx context.Context) (browser.PageDriver, error)

type SessionConfig struct {
	Open      OpenFunc
	Scraper   scraper.Options
	OutputDir string
	Delimiter rune
	UseCRLF   bool
	Progress  scraper.ProgressFunc

	// Optional sinks; leave nil to disable.
	Store  ProductStore
	Events EventPublisher
}

// SessionExecutor opens one browser session per run and releases it when
// the run ends.
type SessionExecutor struct {
	cfg    SessionConfig
	logger *slog.Logger
}

func NewSessionExecutor(cfg SessionConfig, logger *slog.Logger) *SessionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionExecutor{cfg: cfg, logger: logger}
}

func (e *SessionExecutor) Execute(ctx context.Context, runID string, mode catalog.Mode, sections []catalog.Section, onSection func(SectionResult)) ([]SectionResult, error) {
	driver, err := e.cfg.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}

	opts := e.cfg.Scraper
	opts.Mode = mode

	s := scraper.New(driver, &opts, e.logger)
	defer func() {
		if err := s.Close(); err != nil {
			e.logger.Warn("failed to close browser session", "run_id", runID, "error", err)
		}
	}()
	s.SetProgress(e.cfg.Progress)

	runner := NewRunner(s, RunnerConfig{
		Mode:      mode,
		OutputDir: e.cfg.OutputDir,
		Delimiter: e.cfg.Delimiter,
		UseCRLF:   e.cfg.UseCRLF,
	}, e.logger)
	if e.cfg.Store != nil {
		runner.WithStore(e.cfg.Store)
	}
	if e.cfg.Events != nil {
		runner.WithEvents(e.cfg.Events)
	}

	return runner.Run(ctx, runID, sections, onSection)
}
