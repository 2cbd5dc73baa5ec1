package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/events"
	"github.com/maltedev/catalog-scraper/internal/export"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// SectionScraper is implemented by *scraper.Scraper.
type SectionScraper interface {
	ScrapeSection(ctx context.Context, section catalog.Section) ([]models.Product, error)
}

// ProductStore is implemented by *database.ProductRepository.
type ProductStore interface {
	SaveRun(ctx context.Context, runID, section string, products []models.Product) error
}

// EventPublisher is implemented by *events.Publisher.
type EventPublisher interface {
	PublishSectionScraped(ctx context.Context, payload *events.SectionScrapedPayload) error
	PublishRunCompleted(ctx context.Context, payload *events.RunFinishedPayload) error
	PublishRunFailed(ctx context.Context, payload *events.RunFinishedPayload) error
}

type SectionResult struct {
	Section  string        `json:"section"`
	Records  int           `json:"records"`
	File     string        `json:"file"`
	Duration time.Duration `json:"duration"`
}

type RunnerConfig struct {
	Mode      catalog.Mode
	OutputDir string
	// Delimiter overrides the mode's default field separator when set.
	Delimiter rune
	UseCRLF   bool
}

// Runner scrapes sections one after another and exports each to its file.
// The first failing section aborts the run.
type Runner struct {
	scraper SectionScraper
	writer  *export.CSVWriter
	cfg     RunnerConfig
	store   ProductStore
	events  EventPublisher
	logger  *slog.Logger
}

func NewRunner(s SectionScraper, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	delimiter := cfg.Delimiter
	if delimiter == 0 {
		delimiter = cfg.Mode.DefaultDelimiter()
	}

	writer := export.NewCSVWriter(delimiter, cfg.Mode.IncludesMemory())
	writer.UseCRLF = cfg.UseCRLF

	return &Runner{
		scraper: s,
		writer:  writer,
		cfg:     cfg,
		logger:  logger.With("component", "runner"),
	}
}

// WithStore persists every exported section; a store failure fails the run.
func (r *Runner) WithStore(store ProductStore) *Runner {
	r.store = store
	return r
}

// WithEvents publishes run events; publish failures are only logged.
func (r *Runner) WithEvents(publisher EventPublisher) *Runner {
	r.events = publisher
	return r
}

func (r *Runner) Run(ctx context.Context, runID string, sections []catalog.Section, onSection func(SectionResult)) ([]SectionResult, error) {
	start := time.Now()
	results := make([]SectionResult, 0, len(sections))

	for _, section := range sections {
		result, err := r.runSection(ctx, runID, section)
		if err != nil {
			r.finish(ctx, runID, sections, results, start, err)
			return results, err
		}

		results = append(results, result)
		if onSection != nil {
			onSection(result)
		}
	}

	r.finish(ctx, runID, sections, results, start, nil)
	return results, nil
}

func (r *Runner) runSection(ctx context.Context, runID string, section catalog.Section) (SectionResult, error) {
	start := time.Now()

	products, err := r.scraper.ScrapeSection(ctx, section)
	if err != nil {
		return SectionResult{}, err
	}

	path := filepath.Join(r.cfg.OutputDir, section.File)
	if err := r.writer.WriteFile(path, products); err != nil {
		return SectionResult{}, fmt.Errorf("failed to export section %s: %w", section.Name, err)
	}

	if r.store != nil {
		if err := r.store.SaveRun(ctx, runID, section.Name, products); err != nil {
			return SectionResult{}, fmt.Errorf("failed to store section %s: %w", section.Name, err)
		}
	}

	result := SectionResult{
		Section:  section.Name,
		Records:  len(products),
		File:     path,
		Duration: time.Since(start),
	}

	if r.events != nil {
		if err := r.events.PublishSectionScraped(ctx, &events.SectionScrapedPayload{
			RunID:   runID,
			Section: section.Name,
			Mode:    string(r.cfg.Mode),
			Records: result.Records,
			File:    path,
		}); err != nil {
			r.logger.Warn("failed to publish section event", "section", section.Name, "error", err)
		}
	}

	r.logger.Info("section exported", "run_id", runID, "section", section.Name, "records", result.Records, "file", path)
	return result, nil
}

func (r *Runner) finish(ctx context.Context, runID string, sections []catalog.Section, results []SectionResult, start time.Time, runErr error) {
	if r.events == nil {
		return
	}

	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Name)
	}
	records := make(map[string]int, len(results))
	for _, res := range results {
		records[res.Section] = res.Records
	}

	payload := &events.RunFinishedPayload{
		RunID:    runID,
		Mode:     string(r.cfg.Mode),
		Sections: names,
		Records:  records,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}

	var err error
	if runErr != nil {
		payload.Error = runErr.Error()
		// The run context may be what failed; the event still goes out.
		err = r.events.PublishRunFailed(context.WithoutCancel(ctx), payload)
	} else {
		err = r.events.PublishRunCompleted(ctx, payload)
	}
	if err != nil {
		r.logger.Warn("failed to publish run event", "run_id", runID, "error", err)
	}
}
