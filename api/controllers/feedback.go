package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/api/validators"
	"github.com/angelmondragon/gemcart/internal/feedback"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/pagination"
)

type createFeedbackPayload struct {
	CustomerName string `json:"customerName" validate:"required,max=80"`
	Rating       int    `json:"rating" validate:"gte=1,lte=5"`
	Text         string `json:"text" validate:"max=2000"`
	ImageData    string `json:"imageData,omitempty" validate:"omitempty,datauri|base64"`
}

type feedbackPage struct {
	Items      []feedback.Feedback `json:"items"`
	NextCursor string              `json:"nextCursor,omitempty"`
}

type itemFeedbackResponse struct {
	Items   []feedback.Feedback `json:"items"`
	Summary feedback.Summary    `json:"summary"`
}

// FeedbackListAll pages through every review, newest first, using
// ?limit= and the opaque ?cursor= from the previous page.
func FeedbackListAll(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}
		items, next := pagination.Page(p.Feedback.ListAll(r.Context()), cursor, limit, func(f feedback.Feedback) (time.Time, string) {
			return f.CreatedAt, f.ID
		})
		responses.WriteSuccess(w, feedbackPage{Items: items, NextCursor: next})
	}
}

func FeedbackListByItem(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		ctx := r.Context()
		responses.WriteSuccess(w, itemFeedbackResponse{
			Items:   p.Feedback.ListByItem(ctx, slug),
			Summary: p.Feedback.Summary(ctx, slug),
		})
	}
}

func FeedbackCreate(products Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		slug := chi.URLParam(r, "slug")
		if _, ok := requireProduct(w, r, logg, products, slug); !ok {
			return
		}
		var payload createFeedbackPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := p.Feedback.Add(r.Context(), feedback.Input{
			ItemID:       slug,
			CustomerName: payload.CustomerName,
			Rating:       payload.Rating,
			Text:         payload.Text,
			ImageData:    payload.ImageData,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func FeedbackUpdate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		var patch feedback.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, found, err := p.Feedback.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "feedback not found"))
			return
		}
		responses.WriteSuccess(w, record)
	}
}

func FeedbackDelete(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		if !p.Feedback.Delete(r.Context(), chi.URLParam(r, "id")) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "feedback not found"))
			return
		}
		responses.WriteNoContent(w)
	}
}
