package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gemcart/api/controllers"
	"github.com/angelmondragon/gemcart/api/middleware"
	"github.com/angelmondragon/gemcart/internal/checkout"
	"github.com/angelmondragon/gemcart/internal/profile"
	"github.com/angelmondragon/gemcart/pkg/config"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	storage controllers.Pinger,
	gatherer prometheus.Gatherer,
	products controllers.Catalog,
	profiles *profile.Registry,
	composer checkout.Composer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, storage))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", controllers.CatalogCategories(products))
			r.Get("/products", controllers.CatalogProducts(products))
			r.Get("/products/{slug}", controllers.CatalogProduct(products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Profile(profiles, logg))

			r.Get("/catalog/products/{slug}/feedback", controllers.FeedbackListByItem(products, logg))
			r.Post("/catalog/products/{slug}/feedback", controllers.FeedbackCreate(products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(products, logg))
				r.Delete("/", controllers.CartClear(logg))
				r.Get("/checkout", controllers.CartCheckout(products, composer, logg))
				r.Put("/items/{slug}", controllers.CartSetQuantity(products, logg))
				r.Delete("/items/{slug}", controllers.CartRemove(products, logg))
				r.Post("/items/{slug}/increment", controllers.CartIncrement(products, logg))
				r.Post("/items/{slug}/decrement", controllers.CartDecrement(products, logg))
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", controllers.FavoritesList(products, logg))
				r.Post("/", controllers.FavoritesAdd(products, logg))
				r.Post("/{slug}/toggle", controllers.FavoritesToggle(products, logg))
				r.Patch("/{slug}", controllers.FavoritesUpdate(logg))
				r.Delete("/{slug}", controllers.FavoritesRemove(logg))
			})

			r.Route("/feedback", func(r chi.Router) {
				r.Get("/", controllers.FeedbackListAll(logg))
				r.Patch("/{id}", controllers.FeedbackUpdate(logg))
				r.Delete("/{id}", controllers.FeedbackDelete(logg))
			})

			r.Route("/address", func(r chi.Router) {
				r.Get("/", controllers.AddressFetch(logg))
				r.Put("/", controllers.AddressSave(logg))
				r.Patch("/", controllers.AddressUpdate(logg))
				r.Delete("/", controllers.AddressClear(logg))
			})

			r.Get("/badges", controllers.Badges(logg))
			r.Get("/events", controllers.Events(logg))
		})
	})

	return r
}
