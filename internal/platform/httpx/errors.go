package httpx

import (
	"errors"
	"net/http"

	"github.com/textileflow/textileflow/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrProtectedReference):
		Problem(w, http.StatusConflict, "Protected Reference", err.Error())
	case errors.Is(err, shared.ErrAlreadySettled):
		Problem(w, http.StatusConflict, "Already Settled", err.Error())
	case errors.Is(err, shared.ErrInvalidOperation):
		Problem(w, http.StatusConflict, "Invalid Operation", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", "concurrent update detected, retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
