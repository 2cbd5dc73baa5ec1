package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
)

// ScrapeSection loads a catalog section, expands its listing and returns
// its records in listing order. Any failure aborts the section.
func (s *Scraper) ScrapeSection(ctx context.Context, section catalog.Section) ([]models.Product, error) {
	start := time.Now()
	logger := s.logger.With("section", section.Name, "mode", s.opts.Mode)
	logger.Info("scraping section", "url", section.URL)

	if err := s.driver.Navigate(ctx, section.URL); err != nil {
		return nil, fmt.Errorf("failed to open section %s: %w", section.Name, err)
	}

	s.AcceptCookies(ctx)

	total, err := s.ExpandListing(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to expand section %s: %w", section.Name, err)
	}
	logger.Info("listing expanded", "cards", total)

	var products []models.Product
	switch s.opts.Mode {
	case catalog.ModeListing:
		products, err = s.walkListing(ctx, section)
	case catalog.ModeDetail:
		products, err = s.walkDetails(ctx, section)
	default:
		err = fmt.Errorf("%w: %q", catalog.ErrUnknownMode, s.opts.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scrape section %s: %w", section.Name, err)
	}

	logger.Info("section scraped", "records", len(products), "duration", time.Since(start))
	return products, nil
}

type cardData struct {
	product models.Product
	link    string
}

// walkListing reads the fields off every card, then follows each title
// link for the title alone. Card data and links are collected before
// leaving the listing, so detail pages are visited back to back without
// returning to it.
func (s *Scraper) walkListing(ctx context.Context, section catalog.Section) ([]models.Product, error) {
	cards, err := s.driver.FindAll(ctx, s.opts.Selectors.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	collected := make([]cardData, 0, len(cards))
	for i, card := range cards {
		product, err := s.ExtractFields(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		link, err := s.TitleLink(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		collected = append(collected, cardData{product: product, link: link})
	}

	total := len(collected)
	s.report(section.Name, 0, total)

	products := make([]models.Product, 0, total)
	for i, c := range collected {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		if err := s.driver.Navigate(ctx, c.link); err != nil {
			return nil, fmt.Errorf("card %d: failed to open detail page: %w", i, err)
		}
		title, err := s.ExtractTitle(ctx, s.driver)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}

		product := c.product
		product.Title = title
		if err := validate(product); err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}

		products = append(products, product)
		s.report(section.Name, i+1, total)
	}

	return products, nil
}

// walkDetails visits every detail page and expands its variants.
func (s *Scraper) walkDetails(ctx context.Context, section catalog.Section) ([]models.Product, error) {
	cards, err := s.driver.FindAll(ctx, s.opts.Selectors.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	links := make([]string, 0, len(cards))
	for i, card := range cards {
		link, err := s.TitleLink(ctx, card)
		if err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
		links = append(links, link)
	}

	total := len(links)
	s.report(section.Name, 0, total)

	var products []models.Product
	for i, link := range links {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		if err := s.driver.Navigate(ctx, link); err != nil {
			return nil, fmt.Errorf("card %d: failed to open detail page: %w", i, err)
		}

		variants, err := s.ExpandVariants(ctx, s.extractValidDetail)
		if err != nil {
			return nil, fmt.Errorf("card %d (%s): %w", i, link, err)
		}

		products = append(products, variants...)
		s.report(section.Name, i+1, total)
	}

	return products, nil
}

func (s *Scraper) extractValidDetail(ctx context.Context) (models.Product, error) {
	product, err := s.ExtractDetail(ctx)
	if err != nil {
		return models.Product{}, err
	}
	if err := validate(product); err != nil {
		return models.Product{}, err
	}
	return product, nil
}
