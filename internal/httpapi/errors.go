package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mathclub/festival-bbs/internal/auth"
	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/storage"
)

// ErrorWithStatusCode carries the status a handler error should be rendered with.
// Any other error is a 500.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// mutationResult is the body of every mutating endpoint.
type mutationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Post    any    `json:"post,omitempty"`
}

// statusOf maps domain and store errors onto HTTP.
func statusOf(err error) (int, string) {
	var withCode *ErrorWithStatusCode
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &withCode):
		return withCode.StatusCode, withCode.Message
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrBoardNotFound), errors.Is(err, domain.ErrPostNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrBoardNotAccepting):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, storage.ErrTimeout):
		return http.StatusServiceUnavailable, "the server may be down, please retry"
	case errors.Is(err, auth.ErrNotAdmin):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrNoSecret):
		return http.StatusUnauthorized, "invalid access token"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteErrorAndStatusCode renders err for read endpoints.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	code, msg := statusOf(err)
	writeJSONStatus(w, code, map[string]string{"error": msg})
}

// writeMutationError renders err in the mutation result shape so the form can
// alert and retry.
func writeMutationError(w http.ResponseWriter, err error) {
	code, msg := statusOf(err)
	writeJSONStatus(w, code, mutationResult{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("write response failed", "error", err)
	}
}
