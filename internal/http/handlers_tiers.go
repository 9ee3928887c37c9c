package httpx

import (
	"errors"
	"net/http"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/service"
)

// TierHandlers provides HTTP handlers for reputation reads.
type TierHandlers struct {
	Svc *service.TierService
}

// GetTier returns the latest resolved tier for an address.
func (h *TierHandlers) GetTier(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !model.ValidAddress(address) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("address must be a 0x-prefixed 20 byte hex address"),
		})
		return
	}

	record, err := h.Svc.Latest(r.Context(), address)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"data": record})
}

// GetHistory returns the tier history for an address, most recent first.
func (h *TierHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if !model.ValidAddress(address) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("address must be a 0x-prefixed 20 byte hex address"),
		})
		return
	}

	records, err := h.Svc.History(r.Context(), address, parseIntQuery(r, "limit", 0))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"address": model.NormalizeAddress(address),
		"history": records,
		"count":   len(records),
	})
}
