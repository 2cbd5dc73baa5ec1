package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maltedev/catalog-scraper/internal/app"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/jobs"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
	flags := newFlagSet(os.Args[0], flag.ExitOnError)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, flags)
	quiet := flags.Lookup("quiet").Value.(flag.Getter).Get().(bool)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting catalog scraper", "mode", cfg.Scraper.Mode, "engine", cfg.Scraper.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	var bars *progressBars
	if !quiet {
		bars = newProgressBars()
		defer bars.Stop()
	}

	components, err := app.Build(ctx, cfg, bars.Update, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	selected, err := catalog.Select(components.Sections, cfg.Scraper.Sections)
	if err != nil {
		logger.Error("Invalid sections", "error", err)
		os.Exit(1)
	}

	runID := uuid.New().String()
	start := time.Now()

	results, runErr := components.Executor.Execute(ctx, runID, components.Mode, selected, nil)
	bars.Stop()

	printSummary(results, time.Since(start))

	if runErr != nil {
		logger.Error("Scraping failed", "run_id", runID, "error", runErr)
		components.Close()
		os.Exit(1)
	}

	logger.Info("Scraping completed", "run_id", runID, "sections", len(results))
}

func newFlagSet(name string, handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet(name, handling)
	fs.String("sections", "", "Comma-separated sections to scrape (default: all)")
	fs.String("mode", "", "Walk mode: listing or detail")
	fs.String("engine", "", "Page engine: playwright, or static for server-rendered listings (cannot run load-more scripts)")
	fs.String("out", "", "Output directory for the CSV files")
	fs.String("delimiter", "", "Field delimiter (default depends on mode)")
	fs.Bool("crlf", false, "End rows with CRLF")
	fs.Bool("headless", true, "Run browser in headless mode")
	fs.Bool("quiet", false, "Disable the progress display")
	return fs
}

// applyFlags overrides cfg with the flags given on the command line only,
// so environment settings survive unset flags.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		value := f.Value.String()
		switch f.Name {
		case "sections":
			cfg.Scraper.Sections = strings.Split(value, ",")
		case "mode":
			cfg.Scraper.Mode = value
		case "engine":
			cfg.Scraper.Engine = value
		case "out":
			cfg.Output.Dir = value
		case "delimiter":
			cfg.Output.Delimiter = value
		case "crlf":
			cfg.Output.CRLF = value == "true"
		case "headless":
			cfg.Browser.Headless = value == "true"
		}
	})
}

func printSummary(results []jobs.SectionResult, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Section", "Records", "File", "Duration"})

	total := 0
	for _, r := range results {
		t.AppendRow(table.Row{r.Section, r.Records, r.File, r.Duration.Round(time.Millisecond)})
		total += r.Records
	}

	t.AppendFooter(table.Row{"Total", total, "", elapsed.Round(time.Millisecond)})
	t.Render()
}

// progressBars renders one tracker per section. A nil *progressBars is a
// no-op so it can be handed out unconditionally.
type progressBars struct {
	mu       sync.Mutex
	pw       progress.Writer
	trackers map[string]*progress.Tracker
	stopped  bool
}

func newProgressBars() *progressBars {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true

	go pw.Render()

	return &progressBars{pw: pw, trackers: make(map[string]*progress.Tracker)}
}

func (p *progressBars) Update(section string, done, total int) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, ok := p.trackers[section]
	if !ok {
		tracker = &progress.Tracker{
			Message: fmt.Sprintf("Scraping %s", section),
			Total:   int64(total),
			Units:   progress.UnitsDefault,
		}
		p.trackers[section] = tracker
		p.pw.AppendTracker(tracker)
	}

	tracker.SetValue(int64(done))
	if done >= total {
		tracker.MarkAsDone()
	}
}

func (p *progressBars) Stop() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	for _, tracker := range p.trackers {
		if !tracker.IsDone() {
			tracker.MarkAsErrored()
		}
	}
	p.pw.Stop()
	for p.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
