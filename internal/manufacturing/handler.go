package manufacturing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
	"github.com/nusantara-erp/nusantara-erp/internal/shared"
)

// Handler wires HTTP endpoints for production orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers manufacturing routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/release", h.release)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/cancel", h.cancel)
	r.Get("/{id}/materials", h.materials)
	r.Post("/{id}/issue", h.issue)
	r.Get("/{id}/fulfillment", h.fulfillment)
}

type materialForm struct {
	ItemID             int64           `json:"item_id" validate:"required"`
	Description        string          `json:"description"`
	QtyRequired        decimal.Decimal `json:"qty_required"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	InventoryAccountID int64           `json:"inventory_account_id" validate:"required"`
}

type orderForm struct {
	Date        time.Time      `json:"date" validate:"required"`
	ProductName string         `json:"product_name" validate:"required"`
	WarehouseID int64          `json:"warehouse_id" validate:"required"`
	Materials   []materialForm `json:"materials" validate:"required,min=1,dive"`
}

func (f orderForm) input() Input {
	in := Input{
		Date:        f.Date,
		ProductName: f.ProductName,
		WarehouseID: f.WarehouseID,
	}
	for _, m := range f.Materials {
		in.Materials = append(in.Materials, Material{
			ItemID:             m.ItemID,
			Description:        m.Description,
			QtyRequired:        m.QtyRequired,
			UnitCost:           m.UnitCost,
			InventoryAccountID: m.InventoryAccountID,
		})
	}
	return in
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form orderForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Create(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Release)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Complete)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Cancel)
}

func (h *Handler) materials(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	report, err := h.service.CheckMaterials(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	issue, posting, err := h.service.IssueMaterials(r.Context(), id, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"issue": issue, "posting": posting})
}

func (h *Handler) fulfillment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	list, err := h.service.Fulfillment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, actor shared.Actor) error) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}
