package validators

import (
	"net/http"
	"strconv"

	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
)

// QueryString returns the sanitized value of a query parameter.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}

// ParseQueryInt reads an integer query parameter bounded by [lo, hi]. A
// missing parameter yields fallback.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := QueryString(r, key, 0)
	if raw == "" {
		return fallback, nil
	}
	details := map[string]any{"param": key, "min": lo, "max": hi}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be a whole number").WithDetails(details)
	}
	if value < lo || value > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(details)
	}
	return value, nil
}
