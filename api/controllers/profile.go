package controllers

import (
	"net/http"

	"github.com/angelmondragon/gemcart/api/middleware"
	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/internal/catalog"
	"github.com/angelmondragon/gemcart/internal/profile"
	"github.com/angelmondragon/gemcart/internal/views"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

// Catalog is the product lookup the handlers read from.
type Catalog interface {
	views.Catalog
	Products() []catalog.Product
	ByCategory(category string) []catalog.Product
	Categories() []string
}

func currentProfile(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*profile.Profile, bool) {
	p := middleware.ProfileFromContext(r.Context())
	if p == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "profile context missing"))
		return nil, false
	}
	return p, true
}

func requireProduct(w http.ResponseWriter, r *http.Request, logg *logger.Logger, products Catalog, slug string) (catalog.Product, bool) {
	product, ok := products.ProductBySlug(slug)
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]string{"slug": slug}))
		return catalog.Product{}, false
	}
	return product, true
}
