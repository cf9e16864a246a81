package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/api/validators"
	"github.com/angelmondragon/gemcart/internal/cart"
	"github.com/angelmondragon/gemcart/internal/checkout"
	"github.com/angelmondragon/gemcart/internal/profile"
	"github.com/angelmondragon/gemcart/internal/views"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

type setQuantityPayload struct {
	Quantity *float64 `json:"quantity" validate:"required"`
}

type checkoutResponse struct {
	URL  string         `json:"url"`
	Cart views.CartView `json:"cart"`
}

func cartView(r *http.Request, p *profile.Profile, products Catalog) views.CartView {
	ctx := r.Context()
	return views.BuildCart(p.Cart.Items(ctx), p.Cart.Quantities(ctx), products)
}

// CartFetch returns the render-ready cart of the current profile.
func CartFetch(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, cartView(r, p, products))
	}
}

// CartSetQuantity stores an absolute quantity, floored and clamped at zero;
// zero removes the line.
func CartSetQuantity(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		var payload setQuantityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		p.Cart.SetQuantity(r.Context(), slug, cart.FloorQuantity(*payload.Quantity))
		responses.WriteSuccess(w, cartView(r, p, products))
	}
}

func CartIncrement(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		p.Cart.Increment(r.Context(), slug)
		responses.WriteSuccess(w, cartView(r, p, products))
	}
}

// CartDecrement lowers the quantity by one and drops the line at zero.
// Slugs no longer in the catalog can still be decremented away.
func CartDecrement(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		p.Cart.Decrement(r.Context(), chi.URLParam(r, "slug"))
		responses.WriteSuccess(w, cartView(r, p, products))
	}
}

func CartRemove(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		p.Cart.Remove(r.Context(), chi.URLParam(r, "slug"))
		responses.WriteSuccess(w, cartView(r, p, products))
	}
}

func CartClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		p.Cart.Clear(r.Context())
		responses.WriteNoContent(w)
	}
}

// CartCheckout composes the order handoff link. The cart is left intact.
func CartCheckout(products Catalog, composer checkout.Composer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		order := checkout.Order{
			Cart: cartView(r, p, products),
			Note: validators.QueryString(r, "note", 500),
		}
		if addr, found := p.Address.Get(r.Context()); found {
			order.Address = &addr
		}
		link, err := composer.Compose(order)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutResponse{URL: link, Cart: order.Cart})
	}
}
