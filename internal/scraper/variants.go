package scraper

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

// ExtractFunc reads one record off the page in its current state.
type ExtractFunc func(ctx context.Context) (models.Product, error)

// ExpandVariants emits one record per variant control on the current
// detail page, in document order, each tagged with the control's capacity.
// A page without a variant container yields a single untagged record.
func (s *Scraper) ExpandVariants(ctx context.Context, extract ExtractFunc) ([]models.Product, error) {
	sel := s.opts.Selectors

	group, found, err := s.driver.Lookup(ctx, sel.VariantGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to look up variants: %w", err)
	}
	if !found {
		product, err := extract(ctx)
		if err != nil {
			return nil, err
		}
		return []models.Product{product}, nil
	}

	buttons, err := group.FindAll(ctx, sel.VariantButton)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	if len(buttons) == 0 {
		s.logger.Debug("variant container without controls", "url", s.driver.URL())
		product, err := extract(ctx)
		if err != nil {
			return nil, err
		}
		return []models.Product{product}, nil
	}

	products := make([]models.Product, 0, len(buttons))
	for i := range buttons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Controls are re-resolved per click; a re-render may replace them.
		current, err := group.FindAll(ctx, sel.VariantButton)
		if err != nil {
			return nil, fmt.Errorf("failed to list variants: %w", err)
		}
		if i >= len(current) {
			return nil, fmt.Errorf("failed to select variant %d: %w", i, browser.ErrElementNotFound)
		}
		button := current[i]

		value, err := button.Attribute(ctx, "value")
		if err != nil {
			return nil, fmt.Errorf("failed to read variant %d: %w", i, err)
		}
		memory, err := parser.ParseMemory(value)
		if err != nil {
			return nil, fmt.Errorf("failed to read variant %d: %w", i, err)
		}

		if err := button.Click(ctx); err != nil {
			return nil, fmt.Errorf("failed to select variant %d: %w", i, err)
		}
		if err := s.waitSettled(ctx, group, i); err != nil {
			return nil, err
		}

		product, err := extract(ctx)
		if err != nil {
			return nil, err
		}
		products = append(products, product.WithMemory(memory))
	}

	return products, nil
}

// waitSettled waits for the i-th control to carry the active class. A
// page that never marks it is still read, with a warning.
func (s *Scraper) waitSettled(ctx context.Context, group browser.Element, i int) error {
	active := s.opts.Selectors.ActiveClass
	if active == "" {
		return nil
	}

	settled, err := s.driver.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		current, err := group.FindAll(ctx, s.opts.Selectors.VariantButton)
		if err != nil || i >= len(current) {
			return false, err
		}
		class, err := current[i].Attribute(ctx, "class")
		if err != nil {
			return false, err
		}
		return slices.Contains(strings.Fields(class), active), nil
	}, s.opts.SettleTimeout)
	if err != nil {
		return fmt.Errorf("failed to wait for variant %d: %w", i, err)
	}
	if !settled {
		s.logger.Warn("variant did not settle, reading page as is", "variant", i, "url", s.driver.URL())
	}
	return nil
}
