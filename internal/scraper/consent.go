package scraper

import (
	"context"
)

// AcceptCookies dismisses the consent banner when it shows up within
// ConsentTimeout. It never fails: a missing banner or a failed click only
// gets logged. It reports whether the banner was clicked.
func (s *Scraper) AcceptCookies(ctx context.Context) bool {
	button, found, err := s.driver.WaitFor(ctx, s.opts.Selectors.ConsentButton, s.opts.ConsentTimeout)
	if err != nil {
		s.logger.Debug("consent banner lookup failed", "error", err)
		return false
	}
	if !found {
		s.logger.Debug("no consent banner")
		return false
	}

	if err := button.Click(ctx); err != nil {
		s.logger.Warn("failed to accept cookies", "error", err)
		return false
	}

	s.logger.Info("cookies accepted")
	return true
}
