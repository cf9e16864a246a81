package controllers

import (
	"net/http"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/api/validators"
	"github.com/angelmondragon/gemcart/internal/address"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/types"
)

func AddressFetch(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		addr, found := p.Address.Get(r.Context())
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no delivery address saved"))
			return
		}
		responses.WriteSuccess(w, addr)
	}
}

// AddressSave replaces the saved address.
func AddressSave(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		var payload types.DeliveryAddress
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saved, err := p.Address.Save(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, saved)
	}
}

// AddressUpdate merges the given fields into the saved address.
func AddressUpdate(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		var patch address.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saved, err := p.Address.Update(r.Context(), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, saved)
	}
}

func AddressClear(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := currentProfile(w, r, logg)
		if !ok {
			return
		}
		p.Address.Clear(r.Context())
		responses.WriteNoContent(w)
	}
}
