package api

import (
	"errors"
	"net/http"

	"github.com/okian/rankboard/internal/adapters/repository"
)

// CustomerHandler handles single-customer lookups.
type CustomerHandler struct {
	deps CustomerDependencies
}

// NewCustomerHandler creates a new customer handler.
func NewCustomerHandler(deps CustomerDependencies) *CustomerHandler {
	return &CustomerHandler{deps: deps}
}

// HandleGetCustomer handles GET /customer/{customerId}. Rank is 0 until the
// customer appears in a published snapshot.
func (h *CustomerHandler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_customer"

	id, err := parseCustomerID(r.PathValue("customerId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	entry, err := h.deps.Customer(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
