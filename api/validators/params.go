package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/acampos-dev/dealrush-backend/pkg/errors"
)

// ParsePathInt64 reads a positive int64 route parameter.
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter is required").WithDetails(map[string]any{"field": key})
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive integer").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}

// ParseHeaderInt64 reads a positive int64 header value.
func ParseHeaderInt64(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "header is required").WithDetails(map[string]any{"header": key})
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "header must be a positive integer").WithDetails(map[string]any{"header": key})
	}
	return value, nil
}
