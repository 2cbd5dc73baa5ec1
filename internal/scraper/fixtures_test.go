package scraper

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
)

const (
	shopURL    = "https://shop.test/more/phones/"
	productURL = "https://shop.test/product/"
)

type fixtureProduct struct {
	id          int
	title       string
	description string
	price       string
	stars       int
	reviews     string
	memory      []string
}

func (p fixtureProduct) card() string {
	return fmt.Sprintf(`<div class="col-md-4"><div class="card thumbnail"><div class="card-body">
		<h4 class="price float-end">%s</h4>
		<h4><a href="/product/%d" class="title" title="%s">%s...</a></h4>
		<p class="description card-text">%s</p>
		<div class="ratings"><p class="review-count float-end">%s</p><p>%s</p></div>
	</div></div></div>`,
		p.price, p.id, p.title, truncate(p.title, 10), p.description, p.reviews, stars(p.stars))
}

func (p fixtureProduct) detail() string {
	var swatches string
	if len(p.memory) > 0 {
		var b strings.Builder
		b.WriteString(`<div class="swatches">`)
		for _, m := range p.memory {
			fmt.Fprintf(&b, `<button type="button" class="btn swatch" value="%s">%s</button>`, m, m)
		}
		b.WriteString(`</div>`)
		swatches = b.String()
	}

	return fmt.Sprintf(`<html><body><div class="product-wrapper card-body">
		<h4 class="title card-title">%s</h4>
		<h4 class="price">%s</h4>
		<p class="description card-text">%s</p>
		%s
		<div class="ratings"><p class="review-count">%s</p><p>%s</p></div>
	</div></body></html>`,
		p.title, p.price, p.description, swatches, p.reviews, stars(p.stars))
}

func listingPage(cards []fixtureProduct, withMore bool) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	b.WriteString(`<div id="cookieBanner"><a class="acceptCookies" href="#">Accept &amp; Continue</a></div>`)
	b.WriteString(`<div class="row ecomerce-items">`)
	for _, c := range cards {
		b.WriteString(c.card())
	}
	b.WriteString(`</div>`)
	if withMore {
		b.WriteString(`<a class="btn btn-primary ecomerce-items-scroll-more">More</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func stars(n int) string {
	return strings.Repeat(`<span class="ws-icon ws-icon-star"></span>`, n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// newShop serves a listing whose first batch is rendered and whose later
// batches are appended one per load-more click.
func newShop(t *testing.T, batches ...[]fixtureProduct) (*browser.StaticPage, *int) {
	t.Helper()

	page, clicks, _ := newCountingShop(t, batches...)
	return page, clicks
}

// countingFetcher records how often each URL was loaded.
type countingFetcher struct {
	browser.MapFetcher
	hits map[string]int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.hits[url]++
	return f.MapFetcher.Fetch(ctx, url)
}

func newCountingShop(t *testing.T, batches ...[]fixtureProduct) (*browser.StaticPage, *int, map[string]int) {
	t.Helper()

	fetcher := browser.MapFetcher{}
	for _, batch := range batches {
		for _, p := range batch {
			fetcher[fmt.Sprintf("%s%d", productURL, p.id)] = p.detail()
		}
	}
	fetcher[shopURL] = listingPage(batches[0], len(batches) > 1)

	counter := &countingFetcher{MapFetcher: fetcher, hits: make(map[string]int)}
	page := browser.NewStaticPage(counter, nil)

	clicks := 0
	page.OnClick(".ecomerce-items-scroll-more", func(p *browser.StaticPage, el *goquery.Selection) error {
		clicks++
		if clicks < len(batches) {
			var b strings.Builder
			for _, c := range batches[clicks] {
				b.WriteString(c.card())
			}
			p.Document().Find(".ecomerce-items").AppendHtml(b.String())
		}
		if clicks >= len(batches)-1 {
			el.SetAttr("style", "display: none;")
		}
		return nil
	})
	page.OnClick(".acceptCookies", func(p *browser.StaticPage, el *goquery.Selection) error {
		p.Document().Find("#cookieBanner").Remove()
		return nil
	})
	page.OnClick(".swatches button", activateSwatch)

	return page, &clicks, counter.hits
}

// activateSwatch marks the clicked swatch active and reprices the page the
// way the catalog's scripts do.
func activateSwatch(p *browser.StaticPage, el *goquery.Selection) error {
	el.Siblings().RemoveClass("active")
	el.AddClass("active")

	value, _ := el.Attr("value")
	p.Document().Find(".price").First().SetText("$" + value + ".00")
	return nil
}

func testOptions(mode catalog.Mode) *Options {
	opts := DefaultOptions()
	opts.Mode = mode
	opts.ConsentTimeout = 20 * time.Millisecond
	opts.LoadMoreTimeout = 30 * time.Millisecond
	opts.SettleTimeout = 30 * time.Millisecond
	return opts
}

var phones = []fixtureProduct{
	{id: 1, title: "Nokia 123", description: "7 day battery", price: "$24.99", stars: 3, reviews: "7 reviews"},
	{id: 2, title: "LG Optimus", description: "3.2\" screen", price: "$57.99", stars: 5, reviews: "11 reviews"},
	{id: 3, title: "Samsung Galaxy", description: "5 mpx. Android 5.0", price: "$93.99", stars: 1, reviews: "(3)"},
}

var morePhones = []fixtureProduct{
	{id: 4, title: "Nokia X", description: "Andoid, Jolla dualboot", price: "$109.99", stars: 2, reviews: "1 reviews"},
	{id: 5, title: "Sony Xperia", description: "GPS, waterproof", price: "$118.99", stars: 4, reviews: "6 reviews"},
}
