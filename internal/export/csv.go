// Package export writes scraped records to delimited text files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/maltedev/catalog-scraper/internal/models"
)

var ErrInvalidRecord = errors.New("invalid record")

const (
	columnTitle        = "title"
	columnDescription  = "description"
	columnPrice        = "price"
	columnMemory       = "memory"
	columnRating       = "rating"
	columnNumOfReviews = "num_of_reviews"
)

// CSVWriter renders products as a header row followed by one row per
// product. The column set is fixed here rather than derived from the
// record type.
type CSVWriter struct {
	Delimiter     rune
	IncludeMemory bool
	// UseCRLF ends rows with \r\n instead of \n.
	UseCRLF bool
}

func NewCSVWriter(delimiter rune, includeMemory bool) *CSVWriter {
	return &CSVWriter{Delimiter: delimiter, IncludeMemory: includeMemory}
}

func (w *CSVWriter) Header() []string {
	return header(w.IncludeMemory)
}

func header(includeMemory bool) []string {
	if includeMemory {
		return []string{columnTitle, columnDescription, columnPrice, columnMemory, columnRating, columnNumOfReviews}
	}
	return []string{columnTitle, columnDescription, columnPrice, columnRating, columnNumOfReviews}
}

func (w *CSVWriter) Write(out io.Writer, products []models.Product) error {
	cw := csv.NewWriter(out)
	if w.Delimiter != 0 {
		cw.Comma = w.Delimiter
	}
	cw.UseCRLF = w.UseCRLF

	if err := cw.Write(w.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, p := range products {
		if err := cw.Write(w.row(p)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	return nil
}

// WriteFile writes products to path, creating parent directories and
// truncating an existing file.
func (w *CSVWriter) WriteFile(path string, products []models.Product) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	return w.Write(f, products)
}

func (w *CSVWriter) row(p models.Product) []string {
	price := strconv.FormatFloat(p.Price, 'f', -1, 64)
	rating := strconv.Itoa(p.Rating)
	reviews := strconv.Itoa(p.NumOfReviews)

	if !w.IncludeMemory {
		return []string{p.Title, p.Description, price, rating, reviews}
	}

	memory := ""
	if p.Memory != nil {
		memory = strconv.Itoa(*p.Memory)
	}
	return []string{p.Title, p.Description, price, memory, rating, reviews}
}

// ReadCSV parses output of CSVWriter back into products. The memory column
// is optional and detected from the header.
func ReadCSV(in io.Reader, delimiter rune) ([]models.Product, error) {
	cr := csv.NewReader(in)
	if delimiter != 0 {
		cr.Comma = delimiter
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidRecord)
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[name] = i
	}
	for _, name := range header(false) {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidRecord, name)
		}
	}
	memoryCol, hasMemory := columns[columnMemory]

	products := make([]models.Product, 0, len(rows)-1)
	for line, row := range rows[1:] {
		p, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}

		if hasMemory && row[memoryCol] != "" {
			memory, err := strconv.Atoi(row[memoryCol])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w: memory %q", line+2, ErrInvalidRecord, row[memoryCol])
			}
			p = p.WithMemory(memory)
		}

		products = append(products, p)
	}

	return products, nil
}

func parseRow(row []string, columns map[string]int) (models.Product, error) {
	price, err := strconv.ParseFloat(row[columns[columnPrice]], 64)
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: price %q", ErrInvalidRecord, row[columns[columnPrice]])
	}
	rating, err := strconv.Atoi(row[columns[columnRating]])
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: rating %q", ErrInvalidRecord, row[columns[columnRating]])
	}
	reviews, err := strconv.Atoi(row[columns[columnNumOfReviews]])
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: num_of_reviews %q", ErrInvalidRecord, row[columns[columnNumOfReviews]])
	}

	return models.Product{
		Title:        row[columns[columnTitle]],
		Description:  row[columns[columnDescription]],
		Price:        price,
		Rating:       rating,
		NumOfReviews: reviews,
	}, nil
}
