package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lionswap/accounts/internal/services"
)

// CompositeHandler exposes the cross-service deletion workflow.
type CompositeHandler struct {
	composite *services.CompositeService
}

func NewCompositeHandler(composite *services.CompositeService) *CompositeHandler {
	return &CompositeHandler{composite: composite}
}

// CompositeRouter registers composite routes on the given router.
func CompositeRouter(r chi.Router, composite *services.CompositeService) {
	handler := NewCompositeHandler(composite)

	r.Delete("/users/{handle}", handler.DeleteUser)
}

// CompositeDeleteResponse reports per-leg results using the upstream
// wire names.
type CompositeDeleteResponse struct {
	Identity string   `json:"ms1_identity"`
	Catalog  string   `json:"ms2_catalog"`
	Errors   []string `json:"errors,omitempty"`
}

// ConflictResponse carries the listings that block deletion.
type ConflictResponse struct {
	Reason       string  `json:"reason"`
	BlockedItems []int64 `json:"blocked_items"`
}

// DeleteUser deletes an account and all its catalog listings.
//
//	200 both legs succeeded
//	207 at least one leg failed; per-leg detail in the body
//	404 account not found
//	409 blocking listings exist
//	503 a store could not be reached before deletion started
func (h *CompositeHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	outcome := h.composite.DeleteAccountAndListings(r.Context(), handle)

	switch outcome.Kind {
	case services.OutcomeNotFound:
		writeError(w, http.StatusNotFound, "user not found")
	case services.OutcomeInconsistent:
		writeError(w, http.StatusInternalServerError, "identity record is missing an owner identifier")
	case services.OutcomeUnavailable:
		writeError(w, http.StatusServiceUnavailable, firstError(outcome.Errors, "upstream store unavailable"))
	case services.OutcomeConflict:
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Reason:       "Active reservations/sales exist",
			BlockedItems: outcome.BlockedItems,
		})
	case services.OutcomeDeleted:
		writeJSON(w, http.StatusOK, CompositeDeleteResponse{
			Identity: services.LegDeleted,
			Catalog:  services.LegDeleted,
		})
	case services.OutcomePartial:
		writeJSON(w, http.StatusMultiStatus, CompositeDeleteResponse{
			Identity: outcome.Identity.Status,
			Catalog:  outcome.Catalog.Status,
			Errors:   outcome.Errors,
		})
	default:
		writeError(w, http.StatusInternalServerError, "unexpected deletion outcome")
	}
}

func firstError(errs []string, fallback string) string {
	if len(errs) > 0 {
		return errs[0]
	}
	return fallback
}
