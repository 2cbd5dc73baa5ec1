package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/events"
	"github.com/maltedev/catalog-scraper/internal/models"
)

type MockSectionScraper struct {
	mock.Mock
}

func (m *MockSectionScraper) ScrapeSection(ctx context.Context, section catalog.Section) ([]models.Product, error) {
	args := m.Called(ctx, section)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

type MockProductStore struct {
	mock.Mock
}

func (m *MockProductStore) SaveRun(ctx context.Context, runID, section string, products []models.Product) error {
	args := m.Called(ctx, runID, section, products)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishSectionScraped(ctx context.Context, payload *events.SectionScrapedPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishRunCompleted(ctx context.Context, payload *events.RunFinishedPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishRunFailed(ctx context.Context, payload *events.RunFinishedPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

var (
	homeSection   = catalog.Section{Name: "home", URL: "https://shop.test/", File: "home.csv"}
	phonesSection = catalog.Section{Name: "phones", URL: "https://shop.test/phones/", File: "phones.csv"}
)

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	home := []models.Product{{Title: "Nokia 123", Description: "7 day battery", Price: 24.99, Rating: 3, NumOfReviews: 7}}
	phones := []models.Product{
		{Title: "Iphone", Description: "Black", Price: 899.99, Memory: models.IntPtr(64), Rating: 4, NumOfReviews: 8},
		{Title: "Iphone", Description: "Black", Price: 949.99, Memory: models.IntPtr(128), Rating: 4, NumOfReviews: 8},
	}

	mockScraper := new(MockSectionScraper)
	mockStore := new(MockProductStore)
	mockEvents := new(MockEventPublisher)

	mockScraper.On("ScrapeSection", ctx, homeSection).Return(home, nil)
	mockScraper.On("ScrapeSection", ctx, phonesSection).Return(phones, nil)
	mockStore.On("SaveRun", ctx, "run-1", "home", home).Return(nil)
	mockStore.On("SaveRun", ctx, "run-1", "phones", phones).Return(nil)
	mockEvents.On("PublishSectionScraped", ctx, mock.AnythingOfType("*events.SectionScrapedPayload")).Return(nil).Twice()
	mockEvents.On("PublishRunCompleted", ctx, mock.MatchedBy(func(p *events.RunFinishedPayload) bool {
		return p.RunID == "run-1" && p.Records["home"] == 1 && p.Records["phones"] == 2 && p.Error == ""
	})).Return(nil)

	runner := NewRunner(mockScraper, RunnerConfig{Mode: catalog.ModeDetail, OutputDir: dir}, nil).
		WithStore(mockStore).
		WithEvents(mockEvents)

	var seen []string
	results, err := runner.Run(ctx, "run-1", []catalog.Section{homeSection, phonesSection}, func(r SectionResult) {
		seen = append(seen, r.Section)
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"home", "phones"}, seen)
	assert.Equal(t, 2, results[1].Records)
	assert.Equal(t, filepath.Join(dir, "phones.csv"), results[1].File)

	data, err := os.ReadFile(filepath.Join(dir, "phones.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"title;description;price;memory;rating;num_of_reviews\n"+
			"Iphone;Black;899.99;64;4;8\n"+
			"Iphone;Black;949.99;128;4;8\n",
		string(data))

	mockScraper.AssertExpectations(t)
	mockStore.AssertExpectations(t)
	mockEvents.AssertExpectations(t)
}

func TestRunner_FailsFast(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	scrapeErr := errors.New("element not found: .price")
	mockScraper := new(MockSectionScraper)
	mockEvents := new(MockEventPublisher)

	mockScraper.On("ScrapeSection", ctx, homeSection).Return(nil, scrapeErr)
	mockEvents.On("PublishRunFailed", mock.Anything, mock.MatchedBy(func(p *events.RunFinishedPayload) bool {
		return p.RunID == "run-2" && p.Error == scrapeErr.Error()
	})).Return(nil)

	runner := NewRunner(mockScraper, RunnerConfig{Mode: catalog.ModeListing, OutputDir: dir}, nil).
		WithEvents(mockEvents)

	results, err := runner.Run(ctx, "run-2", []catalog.Section{homeSection, phonesSection}, nil)
	assert.ErrorIs(t, err, scrapeErr)
	assert.Empty(t, results)

	mockScraper.AssertNotCalled(t, "ScrapeSection", ctx, phonesSection)
	mockEvents.AssertExpectations(t)

	_, statErr := os.Stat(filepath.Join(dir, "home.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_StoreFailureFailsRun(t *testing.T) {
	ctx := context.Background()

	home := []models.Product{{Title: "Nokia 123", Description: "d", Price: 1}}
	mockScraper := new(MockSectionScraper)
	mockStore := new(MockProductStore)

	mockScraper.On("ScrapeSection", ctx, homeSection).Return(home, nil)
	mockStore.On("SaveRun", ctx, "run-3", "home", home).Return(errors.New("db down"))

	runner := NewRunner(mockScraper, RunnerConfig{Mode: catalog.ModeListing, OutputDir: t.TempDir()}, nil).
		WithStore(mockStore)

	_, err := runner.Run(ctx, "run-3", []catalog.Section{homeSection}, nil)
	assert.ErrorContains(t, err, "failed to store section home")
}

func TestRunner_EventFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	home := []models.Product{{Title: "Nokia 123", Description: "d", Price: 1}}
	mockScraper := new(MockSectionScraper)
	mockEvents := new(MockEventPublisher)

	mockScraper.On("ScrapeSection", ctx, homeSection).Return(home, nil)
	mockEvents.On("PublishSectionScraped", ctx, mock.Anything).Return(errors.New("redis down"))
	mockEvents.On("PublishRunCompleted", ctx, mock.Anything).Return(errors.New("redis down"))

	runner := NewRunner(mockScraper, RunnerConfig{Mode: catalog.ModeListing, OutputDir: dir, Delimiter: '\t'}, nil).
		WithEvents(mockEvents)

	results, err := runner.Run(ctx, "run-4", []catalog.Section{homeSection}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	data, err := os.ReadFile(filepath.Join(dir, "home.csv"))
	require.NoError(t, err)
	assert.Equal(t, "title\tdescription\tprice\trating\tnum_of_reviews\nNokia 123\td\t1\t0\t0\n", string(data))
}

func TestRunner_CRLFRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	mockScraper := new(MockSectionScraper)
	mockScraper.On("ScrapeSection", ctx, homeSection).
		Return([]models.Product{{Title: "Nokia 123", Description: "d", Price: 1}}, nil)

	runner := NewRunner(mockScraper, RunnerConfig{Mode: catalog.ModeListing, OutputDir: dir, UseCRLF: true}, nil)

	_, err := runner.Run(ctx, "run-5", []catalog.Section{homeSection}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "home.csv"))
	require.NoError(t, err)
	assert.Equal(t, "title,description,price,rating,num_of_reviews\r\nNokia 123,d,1,0,0\r\n", string(data))
}
