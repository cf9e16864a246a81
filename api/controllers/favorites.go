package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/api/validators"
	"github.com/angelmondragon/gemcart/internal/favorites"
	"github.com/angelmondragon/gemcart/internal/views"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

type addFavoritePayload struct {
	Slug       string `json:"slug" validate:"required,max=200"`
	CustomName string `json:"customName" validate:"max=120"`
	Folder     string `json:"folder" validate:"max=60"`
}

type updateFavoritePayload struct {
	CustomName *string `json:"customName" validate:"omitempty,max=120"`
	Folder     *string `json:"folder" validate:"omitempty,max=60"`
}

type favoritesResponse struct {
	Items   []views.FavoriteCard `json:"items"`
	Groups  []views.FolderGroup  `json:"groups"`
	Folders []string             `json:"folders"`
}

type toggleResponse struct {
	Slug     string `json:"slug"`
	Favorite bool   `json:"favorite"`
}

// FavoritesList returns favorite cards in membership order along with the
// folder grouping.
func FavoritesList(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		ctx := r.Context()
		cards := views.BuildFavorites(p.Favorites.Items(ctx), p.Favorites.Metadata(ctx), products)
		responses.WriteSuccess(w, favoritesResponse{
			Items:   cards,
			Groups:  views.GroupByFolder(cards),
			Folders: p.Favorites.Folders(ctx),
		})
	}
}

// FavoritesAdd answers 201 when the slug was added and 200 when it already
// was a favorite.
func FavoritesAdd(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		var payload addFavoritePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slug := validators.SanitizeString(payload.Slug, 0)
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		added := p.Favorites.Add(r.Context(), slug, favorites.AddOptions{
			CustomName: validators.SanitizeString(payload.CustomName, 120),
			Folder:     validators.SanitizeString(payload.Folder, 60),
		})
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, toggleResponse{Slug: slug, Favorite: true})
	}
}

func FavoritesToggle(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		state := p.Favorites.Toggle(r.Context(), slug)
		responses.WriteSuccess(w, toggleResponse{Slug: slug, Favorite: state})
	}
}

func FavoritesRemove(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if !p.Favorites.Remove(r.Context(), slug) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "favorite not found"))
			return
		}
		responses.WriteNoContent(w)
	}
}

// FavoritesUpdate renames or refiles a favorite. Empty strings clear the
// field; absent fields are left alone.
func FavoritesUpdate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		var payload updateFavoritePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if !p.Favorites.IsFavorite(ctx, slug) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "favorite not found"))
			return
		}
		if payload.CustomName != nil {
			p.Favorites.Rename(ctx, slug, *payload.CustomName)
		}
		if payload.Folder != nil {
			p.Favorites.Move(ctx, slug, *payload.Folder)
		}
		meta, _ := p.Favorites.MetaFor(ctx, slug)
		responses.WriteSuccess(w, meta)
	}
}
