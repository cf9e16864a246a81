package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/gemcart/api/responses"
	"github.com/angelmondragon/gemcart/internal/profile"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

// ProfileIDHeader carries the shopper profile id. It stands in for the
// browser's storage origin: every request with the same id sees the same
// state.
const ProfileIDHeader = "X-Profile-Id"

type profileSource interface {
	Get(ctx context.Context, id string) (*profile.Profile, error)
}

// Profile resolves the profile named by X-Profile-Id and stores it on the
// request context. Requests without a valid UUID are rejected.
func Profile(profiles profileSource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := strings.TrimSpace(r.Header.Get(ProfileIDHeader))
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "profile id header missing").
					WithDetails(map[string]string{"header": ProfileIDHeader}))
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid profile id").
					WithDetails(map[string]string{"header": ProfileIDHeader}))
				return
			}

			p, err := profiles.Get(ctx, id.String())
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			if logg != nil {
				ctx = logg.WithProfileID(ctx, p.ID)
			}
			w.Header().Set(ProfileIDHeader, p.ID)
			next.ServeHTTP(w, r.WithContext(WithProfile(ctx, p)))
		})
	}
}
