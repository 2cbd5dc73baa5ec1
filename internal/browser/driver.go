package browser

import (
	"context"
	"errors"
	"time"
)

var (
	ErrElementNotFound     = errors.New("element not found")
	ErrScriptsUnsupported  = errors.New("driver does not execute scripts")
	ErrNavigationHistory   = errors.New("no previous page in history")
	ErrElementNotClickable = errors.New("element is not clickable")
)

// Condition is polled by WaitUntil until it reports true.
type Condition func(ctx context.Context) (bool, error)

// Scope is anything elements can be looked up in: a whole page or a
// single element subtree.
type Scope interface {
	// Find returns the first match, waiting up to the driver's implicit
	// wait. A missing element yields ErrElementNotFound.
	Find(ctx context.Context, selector string) (Element, error)
	// FindAll returns every current match; an empty result is not an error.
	FindAll(ctx context.Context, selector string) ([]Element, error)
	// Lookup is the explicit existence check: no waiting, no error on absence.
	Lookup(ctx context.Context, selector string) (Element, bool, error)
}

type Element interface {
	Scope
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	Visible(ctx context.Context) (bool, error)
}

// PageDriver is the browser capability surface the scraper consumes.
type PageDriver interface {
	Scope
	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	URL() string
	// WaitFor waits up to timeout for selector to be attached. A timeout
	// is reported as found == false, not as an error.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error)
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) (bool, error)
	Execute(ctx context.Context, script string, arg any) (any, error)
	Close() error
}

// Poll evaluates cond every interval until it holds, the timeout elapses
// (false, nil) or ctx is done.
func Poll(ctx context.Context, interval, timeout time.Duration, cond Condition) (bool, error) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
