// ABOUTME: Bookcase shelf catalog with key normalization and sibling navigation
// ABOUTME: Shelf keys form a small fixed allow-list loaded from embedded TOML

package bookcase

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrUnknownShelf is returned when a key is not in the catalog after
// normalization. Callers render this as a not-found page, not a failure.
var ErrUnknownShelf = errors.New("unknown shelf")

//go:embed catalog.toml
var defaultCatalog []byte

// Shelf is one themed bookcase page. The catalog order defines the
// back/next navigation ring.
type Shelf struct {
	Key   string `toml:"key"`
	Label string `toml:"label"`
	Blurb string `toml:"blurb"`
}

// NavLinks holds the sibling shelf keys for back/next navigation.
// The ring wraps: the first shelf's Back is the last shelf, and vice versa.
type NavLinks struct {
	Back string
	Next string
}

// Catalog is an ordered, immutable set of shelves with key lookup.
type Catalog struct {
	shelves []Shelf
	index   map[string]int
}

// catalogFile mirrors the TOML layout of a catalog file.
type catalogFile struct {
	Shelves []Shelf `toml:"shelf"`
}

// Normalize canonicalizes a raw shelf key: surrounding whitespace is
// trimmed and the result is lower-cased. Normalize is idempotent.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Parse builds a catalog from TOML data and validates it.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return newCatalog(file.Shelves)
}

// Load reads a catalog from a TOML file on disk.
func Load(path string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return newCatalog(file.Shelves)
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		// The embedded catalog is validated by tests; failing here means
		// the binary itself is broken.
		panic("bookcase: invalid embedded catalog: " + err.Error())
	}
	return c
}

func newCatalog(shelves []Shelf) (*Catalog, error) {
	if len(shelves) == 0 {
		return nil, errors.New("catalog has no shelves")
	}

	index := make(map[string]int, len(shelves))
	for i, s := range shelves {
		if s.Key == "" {
			return nil, fmt.Errorf("shelf %d: key is required", i)
		}
		if s.Key != Normalize(s.Key) {
			return nil, fmt.Errorf("shelf %q: key must be lower-case with no surrounding whitespace", s.Key)
		}
		if s.Label == "" {
			return nil, fmt.Errorf("shelf %q: label is required", s.Key)
		}
		if _, dup := index[s.Key]; dup {
			return nil, fmt.Errorf("shelf %q: duplicate key", s.Key)
		}
		index[s.Key] = i
	}

	return &Catalog{shelves: shelves, index: index}, nil
}

// Resolve normalizes a raw key and looks it up in the catalog.
// Returns ErrUnknownShelf for keys outside the allow-list.
func (c *Catalog) Resolve(raw string) (Shelf, error) {
	i, ok := c.index[Normalize(raw)]
	if !ok {
		return Shelf{}, fmt.Errorf("%w: %q", ErrUnknownShelf, raw)
	}
	return c.shelves[i], nil
}

// Neighbors returns the back/next shelf keys for a catalog key.
// The key must already be normalized (as returned by Resolve).
func (c *Catalog) Neighbors(key string) (NavLinks, error) {
	i, ok := c.index[key]
	if !ok {
		return NavLinks{}, fmt.Errorf("%w: %q", ErrUnknownShelf, key)
	}

	n := len(c.shelves)
	return NavLinks{
		Back: c.shelves[(i-1+n)%n].Key,
		Next: c.shelves[(i+1)%n].Key,
	}, nil
}

// Shelves returns the shelves in display order.
func (c *Catalog) Shelves() []Shelf {
	out := make([]Shelf, len(c.shelves))
	copy(out, c.shelves)
	return out
}

// First returns the first shelf in display order, the landing page
// for the site root.
func (c *Catalog) First() Shelf {
	return c.shelves[0]
}
