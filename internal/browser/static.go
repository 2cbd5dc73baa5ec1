package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Fetcher loads the raw HTML behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages over plain HTTP without running scripts.
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(opts *Options) *HTTPFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept-Language", opts.AcceptLanguage).
		SetHeaders(opts.ExtraHeaders)
	if opts.ProxyServer != "" {
		client.SetProxy(opts.ProxyServer)
	}

	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	res, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("failed to fetch %s: status %d", url, res.StatusCode())
	}

	return string(res.Body()), nil
}

// MapFetcher serves fixed documents keyed by URL.
type MapFetcher map[string]string

func (m MapFetcher) Fetch(_ context.Context, url string) (string, error) {
	html, ok := m[url]
	if !ok {
		return "", fmt.Errorf("failed to fetch %s: not found", url)
	}
	return html, nil
}

// ClickHook mutates the current document when an element matching its
// selector is clicked, standing in for the page's own scripts.
type ClickHook func(page *StaticPage, el *goquery.Selection) error

type clickHook struct {
	selector string
	fn       ClickHook
}

// StaticPage is a PageDriver over server-rendered HTML parsed with
// goquery. Scripts never run; behaviour that needs them can be supplied
// through OnClick hooks.
type StaticPage struct {
	mu           sync.Mutex
	fetcher      Fetcher
	doc          *goquery.Document
	url          string
	history      []string
	hooks        []clickHook
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewStaticPage(fetcher Fetcher, logger *slog.Logger) *StaticPage {
	if logger == nil {
		logger = slog.Default()
	}

	return &StaticPage{
		fetcher:      fetcher,
		pollInterval: 10 * time.Millisecond,
		logger:       logger.With("component", "static_page"),
	}
}

// OnClick registers fn for clicks on elements matching selector.
func (p *StaticPage) OnClick(selector string, fn ClickHook) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hooks = append(p.hooks, clickHook{selector: selector, fn: fn})
}

// Document exposes the current DOM to click hooks and tests.
func (p *StaticPage) Document() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.doc
}

func (p *StaticPage) Navigate(ctx context.Context, target string) error {
	if err := p.load(ctx, target); err != nil {
		return err
	}

	p.mu.Lock()
	p.history = append(p.history, target)
	p.mu.Unlock()

	return nil
}

func (p *StaticPage) Back(ctx context.Context) error {
	p.mu.Lock()
	if len(p.history) < 2 {
		p.mu.Unlock()
		return ErrNavigationHistory
	}
	p.history = p.history[:len(p.history)-1]
	previous := p.history[len(p.history)-1]
	p.mu.Unlock()

	return p.load(ctx, previous)
}

func (p *StaticPage) load(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.logger.Debug("loading", "url", target)

	html, err := p.fetcher.Fetch(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", target, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", target, err)
	}

	p.mu.Lock()
	p.doc = doc
	p.url = target
	p.mu.Unlock()

	return nil
}

func (p *StaticPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.url
}

func (p *StaticPage) root() (*goquery.Selection, error) {
	doc := p.Document()
	if doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return doc.Selection, nil
}

func (p *StaticPage) Find(ctx context.Context, selector string) (Element, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	return p.find(ctx, root, selector)
}

func (p *StaticPage) FindAll(ctx context.Context, selector string) ([]Element, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	return p.findAll(ctx, root, selector)
}

func (p *StaticPage) Lookup(ctx context.Context, selector string) (Element, bool, error) {
	root, err := p.root()
	if err != nil {
		return nil, false, err
	}
	return p.lookup(ctx, root, selector)
}

func (p *StaticPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error) {
	var el Element
	found, err := p.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		var ok bool
		var lookupErr error
		el, ok, lookupErr = p.Lookup(ctx, selector)
		return ok, lookupErr
	}, timeout)
	if err != nil || !found {
		return nil, false, err
	}
	return el, true, nil
}

func (p *StaticPage) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) (bool, error) {
	return Poll(ctx, p.pollInterval, timeout, cond)
}

func (p *StaticPage) Execute(ctx context.Context, script string, _ any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %.40q", ErrScriptsUnsupported, script)
}

func (p *StaticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.doc = nil
	p.history = nil
	return nil
}

func (p *StaticPage) find(ctx context.Context, root *goquery.Selection, selector string) (Element, error) {
	el, found, err := p.lookup(ctx, root, selector)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return el, nil
}

func (p *StaticPage) findAll(ctx context.Context, root *goquery.Selection, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := root.Find(selector)
	elements := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &staticElement{page: p, sel: s})
	})
	return elements, nil
}

func (p *StaticPage) lookup(ctx context.Context, root *goquery.Selection, selector string) (Element, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	match := root.Find(selector).First()
	if match.Length() == 0 {
		return nil, false, nil
	}
	return &staticElement{page: p, sel: match}, true, nil
}

func (p *StaticPage) click(ctx context.Context, sel *goquery.Selection) error {
	p.mu.Lock()
	hooks := make([]clickHook, len(p.hooks))
	copy(hooks, p.hooks)
	p.mu.Unlock()

	for _, h := range hooks {
		if sel.Is(h.selector) {
			return h.fn(p, sel)
		}
	}

	if href, ok := sel.Attr("href"); ok && goquery.NodeName(sel) == "a" {
		target, err := p.resolve(href)
		if err != nil {
			return err
		}
		return p.Navigate(ctx, target)
	}

	p.logger.Debug("click has no effect without scripts", "node", goquery.NodeName(sel))
	return nil
}

func (p *StaticPage) resolve(href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", href, err)
	}

	base, err := url.Parse(p.URL())
	if err != nil {
		return "", fmt.Errorf("failed to parse page url: %w", err)
	}

	return base.ResolveReference(ref).String(), nil
}

type staticElement struct {
	page *StaticPage
	sel  *goquery.Selection
}

func (e *staticElement) Find(ctx context.Context, selector string) (Element, error) {
	return e.page.find(ctx, e.sel, selector)
}

func (e *staticElement) FindAll(ctx context.Context, selector string) ([]Element, error) {
	return e.page.findAll(ctx, e.sel, selector)
}

func (e *staticElement) Lookup(ctx context.Context, selector string) (Element, bool, error) {
	return e.page.lookup(ctx, e.sel, selector)
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

func (e *staticElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, _ := e.sel.Attr(name)
	return value, nil
}

func (e *staticElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	visible, err := e.Visible(ctx)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("%w: element is hidden", ErrElementNotClickable)
	}

	return e.page.click(ctx, e.sel)
}

func (e *staticElement) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}

func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	for s := e.sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		style, _ := s.Attr("style")
		style = strings.ReplaceAll(strings.ToLower(style), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}
