package quotations

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

// Handler wires HTTP endpoints for sales quotations.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers quotation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
}

type itemForm struct {
	ItemID      int64           `json:"item_id"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	TaxPct      decimal.Decimal `json:"tax_pct"`
}

type quotationForm struct {
	Date         time.Time  `json:"date" validate:"required"`
	CustomerName string     `json:"customer_name" validate:"required"`
	ValidUntil   time.Time  `json:"valid_until" validate:"required"`
	Notes        string     `json:"notes"`
	Items        []itemForm `json:"items" validate:"required,min=1,dive"`
}

func (f quotationForm) input() Input {
	in := Input{
		Date:         f.Date,
		CustomerName: f.CustomerName,
		ValidUntil:   f.ValidUntil,
		Notes:        f.Notes,
	}
	for _, it := range f.Items {
		in.Items = append(in.Items, Item{
			ItemID:      it.ItemID,
			Description: it.Description,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			DiscountPct: it.DiscountPct,
			TaxPct:      it.TaxPct,
		})
	}
	return in
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form quotationForm
	if !h.decode(w, r, &form) {
		return
	}
	q, err := h.service.Create(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form quotationForm
	if !h.decode(w, r, &form) {
		return
	}
	q, err := h.service.Update(r.Context(), id, form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Reject)
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quotation id")
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
