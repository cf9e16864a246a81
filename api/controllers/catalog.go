package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/api/validators"
	"github.com/angelmondragon/gemcart/internal/catalog"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

type productResponse struct {
	catalog.Product
	OnSale         bool             `json:"onSale"`
	EffectivePrice *decimal.Decimal `json:"effectivePrice,omitempty"`
	DisplayPrice   string           `json:"displayPrice,omitempty"`
}

func newProductResponse(p catalog.Product) productResponse {
	resp := productResponse{Product: p, OnSale: p.HasSale()}
	if price, err := p.EffectivePrice(); err == nil {
		resp.EffectivePrice = &price
		resp.DisplayPrice = catalog.FormatPrice(price)
	}
	return resp
}

// CatalogProducts lists products, optionally filtered by ?category=.
func CatalogProducts(products Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := products.Products()
		if category := validators.QueryString(r, "category", 80); category != "" {
			list = products.ByCategory(category)
		}
		out := make([]productResponse, 0, len(list))
		for _, p := range list {
			out = append(out, newProductResponse(p))
		}
		responses.WriteSuccess(w, out)
	}
}

func CatalogProduct(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, ok := requireProduct(w, r, logg, products, chi.URLParam(r, "slug"))
		if !ok {
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func CatalogCategories(products Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, products.Categories())
	}
}
