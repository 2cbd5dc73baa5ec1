package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
)

// ExtractFields reads every product field except the title from scope,
// which is either a listing card or a whole detail page.
func (s *Scraper) ExtractFields(ctx context.Context, scope browser.Scope) (models.Product, error) {
	sel := s.opts.Selectors

	description, err := requiredText(ctx, scope, "description", sel.Description)
	if err != nil {
		return models.Product{}, err
	}

	priceText, err := requiredText(ctx, scope, "price", sel.Price)
	if err != nil {
		return models.Product{}, err
	}
	price, err := parser.ParsePrice(priceText)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to extract price: %w", err)
	}

	stars, err := scope.FindAll(ctx, sel.Star)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to extract rating: %w", err)
	}
	rating := len(stars)
	if rating > models.MaxRating {
		s.logger.Warn("more star indicators than the rating scale", "stars", rating)
		rating = models.MaxRating
	}

	reviewText, err := requiredText(ctx, scope, "review count", sel.ReviewCount)
	if err != nil {
		return models.Product{}, err
	}
	reviews, err := parser.ParseReviewCount(reviewText)
	if err != nil {
		return models.Product{}, fmt.Errorf("failed to extract review count: %w", err)
	}

	return models.Product{
		Description:  parser.CleanText(description),
		Price:        price,
		Rating:       rating,
		NumOfReviews: reviews,
	}, nil
}

// ExtractTitle reads the product title of a detail page.
func (s *Scraper) ExtractTitle(ctx context.Context, scope browser.Scope) (string, error) {
	title, err := requiredText(ctx, scope, "title", s.opts.Selectors.DetailTitle)
	if err != nil {
		return "", err
	}
	return parser.CleanText(title), nil
}

// ExtractDetail reads a complete record off the current detail page.
func (s *Scraper) ExtractDetail(ctx context.Context) (models.Product, error) {
	product, err := s.ExtractFields(ctx, s.driver)
	if err != nil {
		return models.Product{}, err
	}

	product.Title, err = s.ExtractTitle(ctx, s.driver)
	if err != nil {
		return models.Product{}, err
	}

	return product, nil
}

// TitleLink returns the absolute URL of the detail page a card links to.
func (s *Scraper) TitleLink(ctx context.Context, card browser.Scope) (string, error) {
	link, err := card.Find(ctx, s.opts.Selectors.TitleLink)
	if err != nil {
		return "", fmt.Errorf("failed to extract title link: %w", err)
	}

	href, err := link.Attribute(ctx, "href")
	if err != nil {
		return "", fmt.Errorf("failed to extract title link: %w", err)
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("failed to extract title link: %w: empty href", browser.ErrElementNotFound)
	}

	return resolveURL(s.driver.URL(), href)
}

func requiredText(ctx context.Context, scope browser.Scope, field, selector string) (string, error) {
	el, err := scope.Find(ctx, selector)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", field, err)
	}

	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", field, err)
	}
	return text, nil
}

func resolveURL(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to parse link %q: %w", href, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse page url %q: %w", base, err)
	}
	return b.ResolveReference(ref).String(), nil
}

func validate(p models.Product) error {
	if problems := p.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
	}
	return nil
}
