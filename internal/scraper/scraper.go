package scraper

import (
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
)

var (
	ErrInvalidProduct = errors.New("invalid product")
	// ErrListingStalled means load-more is still offered but clicking it
	// no longer adds cards, so part of the listing stays hidden.
	ErrListingStalled = errors.New("listing stopped growing")
)

// Selectors locate the parts of the catalog markup the scraper reads.
type Selectors struct {
	ConsentButton string
	LoadMore      string
	Card          string
	Description   string
	Price         string
	Star          string
	ReviewCount   string
	TitleLink     string
	DetailTitle   string
	VariantGroup  string
	// VariantButton is relative to VariantGroup.
	VariantButton string
	ActiveClass   string
}

func DefaultSelectors() Selectors {
	return Selectors{
		ConsentButton: ".acceptCookies",
		LoadMore:      ".ecomerce-items-scroll-more",
		Card:          ".card-body",
		Description:   ".description",
		Price:         ".price",
		Star:          ".ws-icon-star",
		ReviewCount:   ".review-count",
		TitleLink:     "h4 > a.title",
		DetailTitle:   ".card-title",
		VariantGroup:  ".swatches",
		VariantButton: "button",
		ActiveClass:   "active",
	}
}

type Options struct {
	Mode      catalog.Mode
	Selectors Selectors

	ConsentTimeout  time.Duration
	LoadMoreTimeout time.Duration
	MaxLoadMore     int
	StallLimit      int
	SettleTimeout   time.Duration

	RateLimitMin time.Duration
	RateLimitMax time.Duration
}

func DefaultOptions() *Options {
	return &Options{
		Mode:            catalog.ModeDetail,
		Selectors:       DefaultSelectors(),
		ConsentTimeout:  time.Second,
		LoadMoreTimeout: 5 * time.Second,
		MaxLoadMore:     100,
		StallLimit:      3,
		SettleTimeout:   2 * time.Second,
	}
}

// ProgressFunc receives the number of cards done out of total for a section.
type ProgressFunc func(section string, done, total int)

// Scraper walks catalog sections through a single PageDriver session. It is
// not safe for concurrent use.
type Scraper struct {
	driver   browser.PageDriver
	opts     *Options
	limiter  ratelimit.RateLimiter
	progress ProgressFunc
	logger   *slog.Logger
}

func New(driver browser.PageDriver, opts *Options, logger *slog.Logger) *Scraper {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scraper{
		driver:  driver,
		opts:    opts,
		limiter: ratelimit.NewSimpleRateLimiter(opts.RateLimitMin, opts.RateLimitMax),
		logger:  logger.With("component", "scraper"),
	}
}

// SetProgress installs a progress callback; nil disables reporting.
func (s *Scraper) SetProgress(fn ProgressFunc) {
	s.progress = fn
}

func (s *Scraper) Mode() catalog.Mode {
	return s.opts.Mode
}

func (s *Scraper) Close() error {
	return s.driver.Close()
}

func (s *Scraper) report(section string, done, total int) {
	if s.progress != nil {
		s.progress(section, done, total)
	}
}
