package qc

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

// Handler wires HTTP endpoints for quality controls and their purchase
// returns.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	automation *ReturnAutomation
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, automation *ReturnAutomation) *Handler {
	return &Handler{logger: logger, service: service, automation: automation, validator: validator.New()}
}

// MountRoutes registers quality control routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/start", h.start)
	r.Post("/{id}/complete", h.complete)
	r.Get("/{id}/returns", h.returns)
	r.Post("/{id}/returns", h.runReturns)
}

type itemForm struct {
	ItemID             int64           `json:"item_id" validate:"required"`
	Description        string          `json:"description"`
	QtyPassed          decimal.Decimal `json:"qty_passed"`
	QtyFailed          decimal.Decimal `json:"qty_failed"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	InventoryAccountID int64           `json:"inventory_account_id"`
}

type controlForm struct {
	Date            time.Time  `json:"date" validate:"required"`
	SupplierName    string     `json:"supplier_name" validate:"required"`
	WarehouseID     int64      `json:"warehouse_id" validate:"required"`
	ReturnAccountID int64      `json:"return_account_id" validate:"required"`
	Items           []itemForm `json:"items" validate:"required,min=1,dive"`
}

func (f controlForm) input() Input {
	in := Input{
		Date:            f.Date,
		SupplierName:    f.SupplierName,
		WarehouseID:     f.WarehouseID,
		ReturnAccountID: f.ReturnAccountID,
	}
	for _, it := range f.Items {
		in.Items = append(in.Items, Item{
			ItemID:             it.ItemID,
			Description:        it.Description,
			QtyPassed:          it.QtyPassed,
			QtyFailed:          it.QtyFailed,
			UnitCost:           it.UnitCost,
			InventoryAccountID: it.InventoryAccountID,
		})
	}
	return in
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form controlForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	control, err := h.service.Create(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, control)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	control, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, control)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Start)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Complete)
}

func (h *Handler) returns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	list, err := h.service.Returns(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) runReturns(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	result, err := h.automation.Run(r.Context(), id, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid control id")
		return uuid.Nil, false
	}
	return id, true
}
