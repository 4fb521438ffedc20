package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
)

// Handler wires read endpoints for stock levels and movement history.
// Movements themselves are written by the document services, never directly
// over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.stock)
	r.Get("/movements", h.movements)
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	itemID, warehouseID, ok := h.keys(w, r)
	if !ok {
		return
	}
	stock, err := h.service.GetStock(r.Context(), itemID, warehouseID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	itemID, warehouseID, ok := h.keys(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), itemID, warehouseID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) keys(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "item_id required")
		return 0, 0, false
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id required")
		return 0, 0, false
	}
	return itemID, warehouseID, true
}
