package delivery

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for delivery orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers delivery routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/receive", h.receive)
}

type itemForm struct {
	ItemID             int64           `json:"item_id" validate:"required"`
	Description        string          `json:"description"`
	Qty                decimal.Decimal `json:"qty"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	InventoryAccountID int64           `json:"inventory_account_id" validate:"required"`
	CogsAccountID      int64           `json:"cogs_account_id" validate:"required"`
}

type orderForm struct {
	Date         time.Time  `json:"date" validate:"required"`
	CustomerName string     `json:"customer_name" validate:"required"`
	WarehouseID  int64      `json:"warehouse_id" validate:"required"`
	SuratJalan   string     `json:"surat_jalan"`
	Description  string     `json:"description"`
	Items        []itemForm `json:"items" validate:"required,min=1,dive"`
}

func (f orderForm) input() Input {
	in := Input{
		Date:         f.Date,
		CustomerName: f.CustomerName,
		WarehouseID:  f.WarehouseID,
		SuratJalan:   f.SuratJalan,
		Description:  f.Description,
	}
	for _, it := range f.Items {
		in.Items = append(in.Items, Item{
			ItemID:             it.ItemID,
			Description:        it.Description,
			Qty:                it.Qty,
			UnitCost:           it.UnitCost,
			InventoryAccountID: it.InventoryAccountID,
			CogsAccountID:      it.CogsAccountID,
		})
	}
	return in
}

type commentForm struct {
	Comment string `json:"comment"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form orderForm
	if !h.decode(w, r, &form) {
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

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form orderForm
	if !h.decode(w, r, &form) {
		return
	}
	order, err := h.service.Update(r.Context(), id, form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, func(id uuid.UUID) error {
		return h.service.Submit(r.Context(), id, httpx.Actor(r))
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form commentForm
	_ = httpx.DecodeJSON(r, &form)
	if err := h.service.Approve(r.Context(), id, httpx.Actor(r), form.Comment); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusApproved)})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form commentForm
	_ = httpx.DecodeJSON(r, &form)
	if err := h.service.Reject(r.Context(), id, httpx.Actor(r), form.Comment); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusRejected)})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	posting, err := h.service.Send(r.Context(), id, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posting)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, func(id uuid.UUID) error {
		return h.service.Confirm(r.Context(), id, httpx.Actor(r))
	})
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, func(id uuid.UUID) error {
		return h.service.Receive(r.Context(), id, httpx.Actor(r))
	})
}

func (h *Handler) simple(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID) error) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := fn(id); err != nil {
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

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}
