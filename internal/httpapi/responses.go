package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"deliveryTracking/internal/apperr"
	"deliveryTracking/internal/logger"
)

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its HTTP status and public message. Internal
// details are logged, never returned.
func writeError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}
	meta := apperr.MetadataFor(typed.Code())
	if log != nil {
		if meta.HTTPStatus >= http.StatusInternalServerError {
			log.Error(ctx, "request failed", err)
		} else {
			log.Warn(ctx, "request rejected", err)
		}
	}
	writeJSON(w, meta.HTTPStatus, errorBody{Error: apiError{
		Code:    string(typed.Code()),
		Message: apperr.PublicMessage(typed),
	}})
}
