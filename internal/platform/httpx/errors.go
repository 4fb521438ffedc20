package httpx

import (
	"errors"
	"net/http"

	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// RespondError maps core errors to HTTP responses. The UI layer renders the
// structured result; the core never writes to the response itself.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation   *shared.ValidationError
		precondition *shared.PreconditionError
		transition   *shared.TransitionError
	)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &validation):
		Problem(w, http.StatusBadRequest, "Validation Failed", validation.Reason)
	case errors.As(err, &transition):
		Problem(w, http.StatusConflict, "Illegal Transition", transition.Error())
	case errors.As(err, &precondition):
		Problem(w, http.StatusUnprocessableEntity, "Precondition Failed", precondition.Reason)
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
