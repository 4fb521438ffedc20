package payments

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

// Handler wires HTTP endpoints for payment requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers payment request routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/settle", h.settle)
	r.Get("/{id}/history", h.history)
}

type requestForm struct {
	Date        time.Time       `json:"date" validate:"required"`
	PayeeName   string          `json:"payee_name" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (f requestForm) input() Input {
	return Input{Date: f.Date, PayeeName: f.PayeeName, Amount: f.Amount, Description: f.Description}
}

type decisionForm struct {
	Comment string `json:"comment"`
}

type settleForm struct {
	CashAccountID    int64 `json:"cash_account_id" validate:"required"`
	ExpenseAccountID int64 `json:"expense_account_id" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form requestForm
	if !h.decode(w, r, &form) {
		return
	}
	req, err := h.service.Create(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form requestForm
	if !h.decode(w, r, &form) {
		return
	}
	req, err := h.service.Update(r.Context(), id, form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form decisionForm
	_ = httpx.DecodeJSON(r, &form)
	if err := h.service.Approve(r.Context(), id, form.Comment, httpx.Actor(r)); err != nil {
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
	var form decisionForm
	_ = httpx.DecodeJSON(r, &form)
	if err := h.service.Reject(r.Context(), id, form.Comment, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusRejected)})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form settleForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.Settle(r.Context(), id, SettlementInput{
		CashAccountID:    form.CashAccountID,
		ExpenseAccountID: form.ExpenseAccountID,
	}, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	logs, err := h.service.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
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
