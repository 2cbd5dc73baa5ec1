package scraper

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/models"
)

var phonesSection = catalog.Section{Name: "phones", URL: shopURL, File: "phones.csv"}

func TestScrapeSectionListingMode(t *testing.T) {
	page, _ := newShop(t, phones, morePhones)
	s := New(page, testOptions(catalog.ModeListing), nil)

	var progress [][2]int
	s.SetProgress(func(section string, done, total int) {
		assert.Equal(t, "phones", section)
		progress = append(progress, [2]int{done, total})
	})

	got, err := s.ScrapeSection(context.Background(), phonesSection)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, models.Product{
		Title:        "Samsung Galaxy",
		Description:  "5 mpx. Android 5.0",
		Price:        93.99,
		Rating:       1,
		NumOfReviews: 3,
	}, got[2])

	titles := make([]string, 0, len(got))
	for _, p := range got {
		assert.Nil(t, p.Memory)
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Nokia 123", "LG Optimus", "Samsung Galaxy", "Nokia X", "Sony Xperia"}, titles)

	assert.Equal(t, [2]int{0, 5}, progress[0])
	assert.Equal(t, [2]int{5, 5}, progress[len(progress)-1])
	assert.Len(t, progress, 6)
}

func TestScrapeSectionListingModeLoadsEachPageOnce(t *testing.T) {
	page, _, hits := newCountingShop(t, phones, morePhones)
	s := New(page, testOptions(catalog.ModeListing), nil)

	got, err := s.ScrapeSection(context.Background(), phonesSection)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, 1, hits[shopURL])
	for _, p := range append(append([]fixtureProduct(nil), phones...), morePhones...) {
		assert.Equal(t, 1, hits[fmt.Sprintf("%s%d", productURL, p.id)], p.title)
	}
	assert.Equal(t, productURL+"5", page.URL())
}

func TestScrapeSectionDetailMode(t *testing.T) {
	catalogPhones := []fixtureProduct{
		{id: 1, title: "Nokia 123", description: "7 day battery", price: "$24.99", stars: 3, reviews: "7 reviews"},
		{id: 2, title: "Iphone", description: "Black", price: "$899.99", stars: 4, reviews: "8 reviews",
			memory: []string{"64", "128", "256"}},
	}
	more := []fixtureProduct{
		{id: 3, title: "Galaxy Tab", description: "Android", price: "$251.99", stars: 2, reviews: "5 reviews",
			memory: []string{"32", "64"}},
	}

	page, _ := newShop(t, catalogPhones, more)
	s := New(page, testOptions(catalog.ModeDetail), nil)

	got, err := s.ScrapeSection(context.Background(), phonesSection)
	require.NoError(t, err)
	require.Len(t, got, 6)

	assert.Equal(t, "Nokia 123", got[0].Title)
	assert.Nil(t, got[0].Memory)
	assert.Equal(t, 24.99, got[0].Price)

	var memories []int
	for _, p := range got[1:] {
		require.NotNil(t, p.Memory)
		memories = append(memories, *p.Memory)
	}
	assert.Equal(t, []int{64, 128, 256, 32, 64}, memories)
	assert.Equal(t, "Galaxy Tab", got[5].Title)
}

func TestScrapeSectionFailsFast(t *testing.T) {
	broken := fixtureProduct{id: 1, title: "", description: "d", price: "$1.00", stars: 1, reviews: "1 reviews"}

	page, _ := newShop(t, []fixtureProduct{broken})
	s := New(page, testOptions(catalog.ModeDetail), nil)

	_, err := s.ScrapeSection(context.Background(), phonesSection)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestScrapeSectionMissingDetailPage(t *testing.T) {
	page := browser.NewStaticPage(browser.MapFetcher{shopURL: listingPage(phones[:1], false)}, nil)
	s := New(page, testOptions(catalog.ModeDetail), nil)

	_, err := s.ScrapeSection(context.Background(), phonesSection)
	assert.Error(t, err)
}

func TestScrapeSectionEmptyListing(t *testing.T) {
	page := browser.NewStaticPage(browser.MapFetcher{shopURL: listingPage(nil, false)}, nil)
	s := New(page, testOptions(catalog.ModeListing), nil)

	got, err := s.ScrapeSection(context.Background(), phonesSection)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScrapeSectionFailsOnStalledListing(t *testing.T) {
	page := browser.NewStaticPage(browser.MapFetcher{
		shopURL: listingPage(phones, true),
	}, nil)
	s := New(page, testOptions(catalog.ModeListing), nil)

	_, err := s.ScrapeSection(context.Background(), phonesSection)
	assert.ErrorIs(t, err, ErrListingStalled)
	assert.ErrorContains(t, err, "failed to expand section phones")
}
