// Package app wires configuration into the browser engine, the optional
// sinks and the run executor shared by the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/events"
	"github.com/maltedev/catalog-scraper/internal/jobs"
	"github.com/maltedev/catalog-scraper/internal/scraper"
)

type Components struct {
	Executor *jobs.SessionExecutor
	Sections []catalog.Section
	Mode     catalog.Mode

	closers []func() error
	logger  *slog.Logger
}

// Build sets up everything a run needs. Close releases it in reverse order.
func Build(ctx context.Context, cfg *config.Config, progress scraper.ProgressFunc, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := catalog.ParseMode(cfg.Scraper.Mode)
	if err != nil {
		return nil, err
	}

	sections, err := catalog.DefaultSections(cfg.Scraper.BaseURL)
	if err != nil {
		return nil, err
	}

	delimiter, err := cfg.Output.DelimiterRune()
	if err != nil {
		return nil, err
	}

	c := &Components{Sections: sections, Mode: mode, logger: logger}

	open, err := c.openFunc(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	sessionCfg := jobs.SessionConfig{
		Open:      open,
		Scraper:   *cfg.ScraperOptions(),
		OutputDir: cfg.Output.Dir,
		Delimiter: delimiter,
		UseCRLF:   cfg.Output.CRLF,
		Progress:  progress,
	}

	if cfg.Database.Enabled {
		store, err := c.connectDatabase(ctx, cfg.Database, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		sessionCfg.Store = store
	}

	if cfg.Redis.Enabled {
		publisher, err := c.connectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		sessionCfg.Events = publisher
	}

	c.Executor = jobs.NewSessionExecutor(sessionCfg, logger)
	return c, nil
}

func (c *Components) openFunc(cfg *config.Config, logger *slog.Logger) (jobs.OpenFunc, error) {
	browserOpts := cfg.BrowserOptions()

	switch cfg.Scraper.Engine {
	case config.EngineStatic:
		fetcher := browser.NewHTTPFetcher(browserOpts)
		return func(context.Context) (browser.PageDriver, error) {
			return browser.NewStaticPage(fetcher, logger), nil
		}, nil

	case config.EnginePlaywright:
		b, err := browser.New(browserOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		c.closers = append(c.closers, b.Close)
		return func(context.Context) (browser.PageDriver, error) {
			page, err := b.Open()
			if err != nil {
				return nil, err
			}
			return page, nil
		}, nil
	}

	return nil, fmt.Errorf("unknown engine %q", cfg.Scraper.Engine)
}

func (c *Components) connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*database.ProductRepository, error) {
	db, err := database.New(ctx, cfg.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.closers = append(c.closers, func() error {
		db.Close()
		return nil
	})

	if err := database.Migrate(ctx, db); err != nil {
		return nil, err
	}

	logger.Info("database sink enabled", "host", cfg.Host, "database", cfg.DBName)
	return database.NewProductRepository(db, logger), nil
}

func (c *Components) connectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*events.Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c.closers = append(c.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("event sink enabled", "addr", cfg.Addr, "stream", cfg.Stream)
	return events.NewPublisher(client, cfg.Stream, logger), nil
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
