// Package catalog is the read-only product list the storefront sells from.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed data/catalog.json
var embedded []byte

// Product is one catalog entry. Prices are display strings such as "₹1,000".
type Product struct {
	Slug          string   `json:"slug" toml:"slug"`
	Name          string   `json:"name" toml:"name"`
	Category      string   `json:"category" toml:"category"`
	Material      string   `json:"material,omitempty" toml:"material"`
	Description   string   `json:"description,omitempty" toml:"description"`
	Price         string   `json:"price,omitempty" toml:"price"`
	OriginalPrice string   `json:"originalPrice,omitempty" toml:"original_price"`
	SalePrice     string   `json:"salePrice,omitempty" toml:"sale_price"`
	Images        []string `json:"images,omitempty" toml:"images"`
	Tags          []string `json:"tags,omitempty" toml:"tags"`
}

type document struct {
	Products []Product `json:"products" toml:"products"`
}

// Catalog is an immutable slug-indexed product list.
type Catalog struct {
	products []Product
	bySlug   map[string]Product
}

// New indexes products by slug. Blank and duplicate slugs are rejected.
func New(products []Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		bySlug:   make(map[string]Product, len(products)),
	}
	for i, p := range products {
		p.Slug = strings.TrimSpace(p.Slug)
		if p.Slug == "" {
			return nil, fmt.Errorf("catalog: product %d has no slug", i)
		}
		if _, dup := c.bySlug[p.Slug]; dup {
			return nil, fmt.Errorf("catalog: duplicate slug %q", p.Slug)
		}
		c.bySlug[p.Slug] = p
		c.products = append(c.products, p)
	}
	return c, nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded, ".json")
}

// Load reads a catalog file; the extension selects JSON or TOML. An empty
// path yields the compiled-in catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes a catalog document in the format named by ext.
func Parse(raw []byte, ext string) (*Catalog, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("catalog: unsupported format %q", ext)
	}
	return New(doc.Products)
}

// ProductBySlug looks up one product.
func (c *Catalog) ProductBySlug(slug string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	p, ok := c.bySlug[strings.TrimSpace(slug)]
	return p, ok
}

// Products returns all products in catalog order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	for _, p := range c.Products() {
		if p.Category != "" {
			seen[p.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns the products of one category in catalog order.
func (c *Catalog) ByCategory(category string) []Product {
	var out []Product
	for _, p := range c.Products() {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}
