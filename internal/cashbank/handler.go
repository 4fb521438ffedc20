package cashbank

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

// Handler wires HTTP endpoints for cash and bank vouchers.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers cash/bank routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.createTransaction)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Put("/transactions/{id}", h.updateTransaction)
	r.Post("/transactions/{id}/post", h.postTransaction)
	r.Post("/transactions/{id}/void", h.voidTransaction)
	r.Post("/transfers", h.createTransfer)
	r.Get("/transfers/{id}", h.getTransfer)
	r.Put("/transfers/{id}", h.updateTransfer)
	r.Post("/transfers/{id}/post", h.postTransfer)
	r.Post("/transfers/{id}/void", h.voidTransfer)
}

type detailForm struct {
	AccountID   int64           `json:"account_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type transactionForm struct {
	Date        time.Time       `json:"date" validate:"required"`
	AccountID   int64           `json:"account_id" validate:"required"`
	Direction   string          `json:"direction" validate:"required,oneof=IN OUT"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Details     []detailForm    `json:"details" validate:"required,min=1,dive"`
}

func (f transactionForm) input() TransactionInput {
	in := TransactionInput{
		Date:        f.Date,
		AccountID:   f.AccountID,
		Direction:   Direction(f.Direction),
		Amount:      f.Amount,
		Description: f.Description,
	}
	for _, d := range f.Details {
		in.Details = append(in.Details, Detail{AccountID: d.AccountID, Amount: d.Amount, Description: d.Description})
	}
	return in
}

type transferForm struct {
	Date          time.Time       `json:"date" validate:"required"`
	FromAccountID int64           `json:"from_account_id" validate:"required"`
	ToAccountID   int64           `json:"to_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	OtherCosts    decimal.Decimal `json:"other_costs"`
	FeeAccountID  int64           `json:"fee_account_id"`
	Description   string          `json:"description"`
}

func (f transferForm) input() TransferInput {
	return TransferInput{
		Date:          f.Date,
		FromAccountID: f.FromAccountID,
		ToAccountID:   f.ToAccountID,
		Amount:        f.Amount,
		OtherCosts:    f.OtherCosts,
		FeeAccountID:  f.FeeAccountID,
		Description:   f.Description,
	}
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var form transactionForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.CreateTransaction(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) updateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form transactionForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.UpdateTransaction(r.Context(), id, form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	posting, err := h.service.PostTransaction(r.Context(), id, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posting)
}

func (h *Handler) voidTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.VoidTransaction(r.Context(), id, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "voided"})
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request) {
	var form transferForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.CreateTransfer(r.Context(), form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) getTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	t, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) updateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form transferForm
	if !h.decode(w, r, &form) {
		return
	}
	t, err := h.service.UpdateTransfer(r.Context(), id, form.input(), httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	posting, err := h.service.PostTransfer(r.Context(), id, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posting)
}

func (h *Handler) voidTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.VoidTransfer(r.Context(), id, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "voided"})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
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
