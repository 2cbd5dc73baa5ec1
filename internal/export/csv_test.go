package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/catalog-scraper/internal/models"
)

func TestWriteListingLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(',', false)

	err := w.Write(&buf, []models.Product{
		{Title: "Nokia 123", Description: "7 day battery", Price: 24.99, Rating: 3, NumOfReviews: 7},
		{Title: "LG Optimus", Description: `3.2" screen, "sunlight" mode`, Price: 57, Rating: 5, NumOfReviews: 11},
	})
	require.NoError(t, err)

	expected := "title,description,price,rating,num_of_reviews\n" +
		"Nokia 123,7 day battery,24.99,3,7\n" +
		"LG Optimus,\"3.2\"\" screen, \"\"sunlight\"\" mode\",57,5,11\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteDetailLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(';', true)

	err := w.Write(&buf, []models.Product{
		{Title: "Iphone", Description: "Black", Price: 899.99, Memory: models.IntPtr(128), Rating: 4, NumOfReviews: 8},
		{Title: "Nokia 123", Description: "7 day battery; long", Price: 24.99, Rating: 3, NumOfReviews: 7},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title;description;price;memory;rating;num_of_reviews", lines[0])
	assert.Equal(t, "Iphone;Black;899.99;128;4;8", lines[1])
	assert.Equal(t, `Nokia 123;"7 day battery; long";24.99;;3;7`, lines[2])
}

func TestWriteCRLF(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(';', true)
	w.UseCRLF = true

	require.NoError(t, w.Write(&buf, []models.Product{
		{Title: "Iphone", Description: "Black", Price: 899.99, Memory: models.IntPtr(64), Rating: 4, NumOfReviews: 8},
	}))
	assert.Equal(t, "title;description;price;memory;rating;num_of_reviews\r\nIphone;Black;899.99;64;4;8\r\n", buf.String())

	got, err := ReadCSV(&buf, ';')
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 64, *got[0].Memory)
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter(',', false).Write(&buf, nil))
	assert.Equal(t, "title,description,price,rating,num_of_reviews\n", buf.String())
}

func TestRoundTrip(t *testing.T) {
	products := []models.Product{
		{Title: "Iphone", Description: "Black, \"unlocked\"", Price: 899.99, Memory: models.IntPtr(64), Rating: 4, NumOfReviews: 8},
		{Title: "Iphone", Description: "Black, \"unlocked\"", Price: 949.99, Memory: models.IntPtr(128), Rating: 4, NumOfReviews: 8},
		{Title: "Nokia 123", Description: "Üni;code", Price: 0.1, Rating: 0, NumOfReviews: 0},
	}

	for _, tt := range []struct {
		name      string
		delimiter rune
		memory    bool
	}{
		{"comma without memory", ',', false},
		{"semicolon with memory", ';', true},
		{"tab with memory", '\t', true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCSVWriter(tt.delimiter, tt.memory).Write(&buf, products))

			got, err := ReadCSV(&buf, tt.delimiter)
			require.NoError(t, err)
			require.Len(t, got, len(products))

			for i := range products {
				want := products[i]
				if !tt.memory {
					want.Memory = nil
				}
				assert.Equal(t, want, got[i])
			}
		})
	}
}

func TestWriteFileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "phones.csv")
	w := NewCSVWriter(',', false)

	many := make([]models.Product, 10)
	for i := range many {
		many[i] = models.Product{Title: "old", Description: "d", Price: 1}
	}
	require.NoError(t, w.WriteFile(path, many))
	require.NoError(t, w.WriteFile(path, []models.Product{{Title: "new", Description: "d", Price: 2}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "title,description,price,rating,num_of_reviews\nnew,d,2,0,0\n", string(data))
}

func TestReadCSVRejectsBadInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), ',')
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ReadCSV(strings.NewReader("title,price\nx,1\n"), ',')
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = ReadCSV(strings.NewReader("title,description,price,rating,num_of_reviews\nx,d,cheap,1,1\n"), ',')
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
