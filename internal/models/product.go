package models

import (
	"fmt"
)

const MaxRating = 5

// Product is one scraped listing. A product with selectable variants
// yields one Product per variant, tagged through Memory.
type Product struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	Memory       *int    `json:"memory,omitempty"`
	Rating       int     `json:"rating"`
	NumOfReviews int     `json:"num_of_reviews"`
}

// WithMemory returns a copy of p tagged with the given variant capacity.
func (p Product) WithMemory(memory int) Product {
	p.Memory = &memory
	return p
}

// HasMemory reports whether p is a variant record.
func (p Product) HasMemory() bool {
	return p.Memory != nil
}

func (p Product) String() string {
	if p.Memory != nil {
		return fmt.Sprintf("%s (%dGB) $%.2f", p.Title, *p.Memory, p.Price)
	}
	return fmt.Sprintf("%s $%.2f", p.Title, p.Price)
}

func (p Product) Validate() []string {
	var errors []string

	if p.Title == "" {
		errors = append(errors, "Title is required")
	}

	if p.Price < 0 {
		errors = append(errors, "Price must not be negative")
	}

	if p.Rating < 0 || p.Rating > MaxRating {
		errors = append(errors, fmt.Sprintf("Rating must be within 0..%d", MaxRating))
	}

	if p.NumOfReviews < 0 {
		errors = append(errors, "NumOfReviews must not be negative")
	}

	if p.Memory != nil && *p.Memory <= 0 {
		errors = append(errors, "Memory must be positive when set")
	}

	return errors
}

// IntPtr is a helper for building variant records in tests and fixtures.
func IntPtr(v int) *int {
	return &v
}
