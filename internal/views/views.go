// Package views joins cart and favorites state with the catalog into the
// shapes the storefront renders. Nothing here writes storage.
package views

import (
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/gemcart/internal/catalog"
	"github.com/angelmondragon/gemcart/internal/favorites"
	"github.com/shopspring/decimal"
)

// Catalog is the lookup the builders need.
type Catalog interface {
	ProductBySlug(slug string) (catalog.Product, bool)
}

// CartLine is one product row of the cart.
type CartLine struct {
	Product   catalog.Product `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the render-ready cart.
type CartView struct {
	Lines []CartLine      `json:"lines"`
	Total decimal.Decimal `json:"total"`
	Units int             `json:"units"`
}

// BuildCart lists members in membership order, skipping items whose
// quantity is zero or whose slug is no longer in the catalog. Products
// without a parseable price count as zero.
func BuildCart(items []string, quantities map[string]int, products Catalog) CartView {
	view := CartView{Lines: make([]CartLine, 0, len(items)), Total: decimal.Zero}
	for _, slug := range items {
		qty := quantities[slug]
		if qty <= 0 {
			continue
		}
		product, ok := products.ProductBySlug(slug)
		if !ok {
			continue
		}
		unit, err := product.EffectivePrice()
		if err != nil {
			unit = decimal.Zero
		}
		line := CartLine{
			Product:   product,
			Quantity:  qty,
			UnitPrice: unit,
			LineTotal: unit.Mul(decimal.NewFromInt(int64(qty))),
		}
		view.Lines = append(view.Lines, line)
		view.Total = view.Total.Add(line.LineTotal)
		view.Units += qty
	}
	return view
}

// FavoriteCard is one tile of the favorites grid.
type FavoriteCard struct {
	Product     catalog.Product `json:"product"`
	DisplayName string          `json:"displayName"`
	Folder      string          `json:"folder,omitempty"`
	AddedAt     *time.Time      `json:"addedAt,omitempty"`
}

// BuildFavorites lists favorites in membership order with their metadata.
// Slugs missing from the catalog are skipped.
func BuildFavorites(items []string, meta []favorites.Meta, products Catalog) []FavoriteCard {
	bySlug := make(map[string]favorites.Meta, len(meta))
	for _, entry := range meta {
		bySlug[entry.Slug] = entry
	}
	cards := make([]FavoriteCard, 0, len(items))
	for _, slug := range items {
		product, ok := products.ProductBySlug(slug)
		if !ok {
			continue
		}
		card := FavoriteCard{Product: product, DisplayName: product.Name}
		if entry, ok := bySlug[slug]; ok {
			if entry.CustomName != nil && strings.TrimSpace(*entry.CustomName) != "" {
				card.DisplayName = *entry.CustomName
			}
			if entry.Folder != nil {
				card.Folder = *entry.Folder
			}
			if !entry.AddedAt.IsZero() {
				added := entry.AddedAt
				card.AddedAt = &added
			}
		}
		cards = append(cards, card)
	}
	return cards
}

// FolderGroup is the cards filed under one folder; Name is empty for
// unfiled cards.
type FolderGroup struct {
	Name  string         `json:"name"`
	Cards []FavoriteCard `json:"cards"`
}

// GroupByFolder groups cards by folder name in alphabetical order with the
// unfiled group last. Card order inside a group is preserved.
func GroupByFolder(cards []FavoriteCard) []FolderGroup {
	groups := map[string][]FavoriteCard{}
	for _, card := range cards {
		groups[card.Folder] = append(groups[card.Folder], card)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]FolderGroup, 0, len(groups))
	for _, name := range names {
		out = append(out, FolderGroup{Name: name, Cards: groups[name]})
	}
	if unfiled, ok := groups[""]; ok {
		out = append(out, FolderGroup{Cards: unfiled})
	}
	return out
}
