package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/catalog-scraper/internal/browser"
)

const scrollToBottomScript = "window.scrollTo(0, document.body.scrollHeight)"

// ExpandListing clicks the load-more control until it disappears or stops
// being interactable, and returns the number of listing cards on the page.
//
// The loop also stops after MaxLoadMore clicks. When StallLimit clicks in
// a row added no card within LoadMoreTimeout and the control is still
// shown, it fails with ErrListingStalled.
func (s *Scraper) ExpandListing(ctx context.Context) (int, error) {
	count, err := s.countCards(ctx)
	if err != nil {
		return 0, err
	}

	clicks, stalls := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if clicks >= s.opts.MaxLoadMore {
			s.logger.Warn("load-more click limit reached", "clicks", clicks, "cards", count)
			break
		}

		s.scrollToBottom(ctx)

		button, found, err := s.driver.Lookup(ctx, s.opts.Selectors.LoadMore)
		if err != nil {
			return count, fmt.Errorf("failed to look up load-more control: %w", err)
		}
		if !found {
			break
		}

		visible, err := button.Visible(ctx)
		if err != nil {
			return count, fmt.Errorf("failed to check load-more control: %w", err)
		}
		if !visible {
			break
		}

		if stalls >= s.opts.StallLimit {
			return count, fmt.Errorf("%w: %d clicks added no cards, %d cards loaded", ErrListingStalled, stalls, count)
		}

		if err := button.ScrollIntoView(ctx); err != nil {
			return count, fmt.Errorf("failed to scroll to load-more control: %w", err)
		}
		if err := button.Click(ctx); err != nil {
			if errors.Is(err, browser.ErrElementNotClickable) {
				s.logger.Debug("load-more control not interactable", "error", err)
				break
			}
			return count, fmt.Errorf("failed to click load-more control: %w", err)
		}
		clicks++

		before := count
		grew, err := s.driver.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
			n, err := s.countCards(ctx)
			if err != nil {
				return false, err
			}
			count = n
			return n > before, nil
		}, s.opts.LoadMoreTimeout)
		if err != nil {
			return count, fmt.Errorf("failed to wait for more cards: %w", err)
		}

		if grew {
			stalls = 0
			continue
		}

		stalls++
		s.logger.Debug("load-more click added no cards", "stalls", stalls, "cards", count)
	}

	s.logger.Debug("listing expanded", "clicks", clicks, "cards", count)
	return count, nil
}

func (s *Scraper) countCards(ctx context.Context) (int, error) {
	cards, err := s.driver.FindAll(ctx, s.opts.Selectors.Card)
	if err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return len(cards), nil
}

// scrollToBottom nudges lazy listings; drivers without scripts skip it.
func (s *Scraper) scrollToBottom(ctx context.Context) {
	if _, err := s.driver.Execute(ctx, scrollToBottomScript, nil); err != nil && !errors.Is(err, browser.ErrScriptsUnsupported) {
		s.logger.Debug("scroll failed", "error", err)
	}
}
