package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightPage drives one live browser tab.
type PlaywrightPage struct {
	page         playwright.Page
	implicitWait time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

func newPlaywrightPage(page playwright.Page, opts *Options, logger *slog.Logger) *PlaywrightPage {
	return &PlaywrightPage{
		page:         page,
		implicitWait: opts.ImplicitWait,
		pollInterval: opts.PollInterval,
		logger:       logger,
	}
}

func (p *PlaywrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.logger.Debug("navigating", "url", url)

	if _, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	return nil
}

func (p *PlaywrightPage) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := p.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("failed to go back: %w", err)
	}
	if resp == nil {
		return ErrNavigationHistory
	}

	return nil
}

func (p *PlaywrightPage) URL() string {
	return p.page.URL()
}

func (p *PlaywrightPage) Find(ctx context.Context, selector string) (Element, error) {
	return findLocator(ctx, p.page.Locator(selector).First(), selector, p.implicitWait)
}

func (p *PlaywrightPage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return allLocators(ctx, p.page.Locator(selector), p.implicitWait)
}

func (p *PlaywrightPage) Lookup(ctx context.Context, selector string) (Element, bool, error) {
	return lookupLocator(ctx, p.page.Locator(selector).First(), p.implicitWait)
}

func (p *PlaywrightPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error) {
	loc := p.page.Locator(selector).First()
	if timeout <= 0 {
		return lookupLocator(ctx, loc, p.implicitWait)
	}

	return waitLocator(ctx, loc, timeout, p.implicitWait)
}

func (p *PlaywrightPage) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) (bool, error) {
	return Poll(ctx, p.pollInterval, timeout, cond)
}

func (p *PlaywrightPage) Execute(ctx context.Context, script string, arg any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := p.page.Evaluate(script, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to execute script: %w", err)
	}

	return result, nil
}

func (p *PlaywrightPage) Close() error {
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}

// playwrightElement is a locator pinned to one match. Locators resolve
// lazily, so an element is only valid while the page keeps its DOM.
type playwrightElement struct {
	loc          playwright.Locator
	implicitWait time.Duration
}

func (e *playwrightElement) Find(ctx context.Context, selector string) (Element, error) {
	return findLocator(ctx, e.loc.Locator(selector).First(), selector, e.implicitWait)
}

func (e *playwrightElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return allLocators(ctx, e.loc.Locator(selector), e.implicitWait)
}

func (e *playwrightElement) Lookup(ctx context.Context, selector string) (Element, bool, error) {
	return lookupLocator(ctx, e.loc.Locator(selector).First(), e.implicitWait)
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.loc.InnerText()
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}
	return text, nil
}

func (e *playwrightElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := e.loc.GetAttribute(name)
	if err != nil {
		return "", fmt.Errorf("failed to read attribute %s: %w", name, err)
	}
	return value, nil
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.loc.Click(); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %v", ErrElementNotClickable, err)
		}
		return fmt.Errorf("failed to click: %w", err)
	}
	return nil
}

func (e *playwrightElement) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.loc.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("failed to scroll into view: %w", err)
	}
	return nil
}

func (e *playwrightElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	visible, err := e.loc.IsVisible()
	if err != nil {
		return false, fmt.Errorf("failed to check visibility: %w", err)
	}
	return visible, nil
}

func findLocator(ctx context.Context, loc playwright.Locator, selector string, wait time.Duration) (Element, error) {
	el, found, err := waitLocator(ctx, loc, wait, wait)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return el, nil
}

func waitLocator(ctx context.Context, loc playwright.Locator, timeout, implicitWait time.Duration) (Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to wait for element: %w", err)
	}

	return &playwrightElement{loc: loc, implicitWait: implicitWait}, true, nil
}

func lookupLocator(ctx context.Context, loc playwright.Locator, implicitWait time.Duration) (Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	count, err := loc.Count()
	if err != nil {
		return nil, false, fmt.Errorf("failed to count elements: %w", err)
	}
	if count == 0 {
		return nil, false, nil
	}

	return &playwrightElement{loc: loc, implicitWait: implicitWait}, true, nil
}

func allLocators(ctx context.Context, loc playwright.Locator, implicitWait time.Duration) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	locs, err := loc.All()
	if err != nil {
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}

	elements := make([]Element, 0, len(locs))
	for _, l := range locs {
		elements = append(elements, &playwrightElement{loc: l, implicitWait: implicitWait})
	}
	return elements, nil
}
