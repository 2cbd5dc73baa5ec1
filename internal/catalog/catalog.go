// Package catalog describes the catalog sections that get scraped and the
// walk modes a section can be scraped in.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://webscraper.io/test-sites/e-commerce/more/"

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownMode    = errors.New("unknown mode")
)

// Mode selects how a section is walked.
type Mode string

const (
	// ModeListing reads fields off listing cards and follows each title
	// link only for the title.
	ModeListing Mode = "listing"
	// ModeDetail visits every detail page and emits one record per variant.
	ModeDetail Mode = "detail"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeListing:
		return ModeListing, nil
	case ModeDetail:
		return ModeDetail, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// IncludesMemory reports whether records of this mode carry a variant tag.
func (m Mode) IncludesMemory() bool {
	return m == ModeDetail
}

// DefaultDelimiter is the field separator the export of this mode uses
// unless configured otherwise.
func (m Mode) DefaultDelimiter() rune {
	if m == ModeDetail {
		return ';'
	}
	return ','
}

type Section struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	File string `json:"file"`
}

var defaultPaths = []struct {
	name string
	path string
}{
	{"home", ""},
	{"computers", "computers/"},
	{"tablets", "computers/tablets"},
	{"laptops", "computers/laptops"},
	{"phones", "phones/"},
	{"touch", "phones/touch"},
}

// DefaultSections returns the six catalog sections rooted at baseURL, in
// scrape order.
func DefaultSections(baseURL string) ([]Section, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	sections := make([]Section, 0, len(defaultPaths))
	for _, p := range defaultPaths {
		ref, err := url.Parse(p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse section path %q: %w", p.path, err)
		}

		sections = append(sections, Section{
			Name: p.name,
			URL:  base.ResolveReference(ref).String(),
			File: p.name + ".csv",
		})
	}

	return sections, nil
}

// Select picks sections by name, keeping the order of names. An empty
// name list selects everything.
func Select(all []Section, names []string) ([]Section, error) {
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Section, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}

	selected := make([]Section, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSection, name)
		}
		selected = append(selected, s)
	}

	if len(selected) == 0 {
		return all, nil
	}

	return selected, nil
}
