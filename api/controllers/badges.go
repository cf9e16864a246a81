package controllers

import (
	"net/http"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

type badgesResponse struct {
	CartUnits int `json:"cartUnits"`
	Favorites int `json:"favorites"`
}

// Badges returns the header counters.
func Badges(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		ctx := r.Context()
		responses.WriteSuccess(w, badgesResponse{
			CartUnits: p.Cart.Count(ctx),
			Favorites: p.Favorites.Count(ctx),
		})
	}
}
