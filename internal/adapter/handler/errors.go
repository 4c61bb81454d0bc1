package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// httpStatus maps a domain error to its HTTP status. Unknown errors map to 500.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidLogin):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrBookNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownRole),
		errors.Is(err, domain.ErrBookExists),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrCurrentPasswordMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyBorrowed),
		errors.Is(err, domain.ErrNoActiveBorrow),
		errors.Is(err, domain.ErrBookOnLoan),
		errors.Is(err, domain.ErrUserHasLoans),
		errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Internal errors are logged and
// reported without detail; token failures never echo the verifier's reason.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := httpStatus(err)
	message := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
		message = "internal server error"
	case errors.Is(err, domain.ErrInvalidCredential):
		message = domain.ErrInvalidCredential.Error()
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
