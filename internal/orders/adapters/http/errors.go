package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err as a stable error body. Detail wrapped around a domain
// error is logged, never sent. Anything that is not a domain error becomes a 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		derr = domain.ErrInternal
	}

	if derr.HTTPStatus >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "error", err, "code", derr.Code, "path", r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "request rejected", "error", err, "code", derr.Code, "path", r.URL.Path)
	}

	writeJSON(w, derr.HTTPStatus, errorResponse{Error: errorBody{Code: derr.Code, Message: derr.Message}})
}
