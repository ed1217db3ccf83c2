package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/kv"
	"github.com/charadev96/ratewise/internal/pagination"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Data:      data,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Error:     &apiError{Code: code, Message: message},
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

// classify maps err onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, pagination.ErrInvalidCursor),
		errors.Is(err, pagination.ErrInvalidLimit):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, shared.ErrNotExist):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, shared.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, shared.ErrSessionLimit):
		return http.StatusTooManyRequests, "SESSION_LIMIT"
	case errors.Is(err, kv.ErrUnavailable):
		return http.StatusServiceUnavailable, "DEPENDENCY_UNREADY"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	var ev *zerolog.Event
	if status >= http.StatusInternalServerError {
		ev = h.logger().Error()
		msg = http.StatusText(status)
	} else {
		ev = h.logger().Debug()
	}
	ev.Err(err).
		Str("request", chimiddleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("request failed")
	writeError(w, r, status, code, msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %w", shared.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single object", shared.ErrInvalidInput)
	}
	return nil
}
