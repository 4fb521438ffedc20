package deposits

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

// Handler wires HTTP endpoints for customer and supplier deposits.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers deposit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/logs", h.logs)
	r.Get("/{id}/reconcile", h.reconcile)
	r.Post("/{id}/use", h.use)
	r.Post("/{id}/return", h.returnFunds)
	r.Post("/{id}/cancel", h.cancel)
}

type depositForm struct {
	Date             time.Time       `json:"date" validate:"required"`
	OwnerKind        string          `json:"owner_kind" validate:"required,oneof=customer supplier"`
	OwnerID          int64           `json:"owner_id" validate:"required"`
	OwnerName        string          `json:"owner_name" validate:"required"`
	AccountID        int64           `json:"account_id" validate:"required"`
	CounterAccountID int64           `json:"counter_account_id"`
	Amount           decimal.Decimal `json:"amount"`
	Note             string          `json:"note"`
}

type amountForm struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type noteForm struct {
	Note string `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form depositForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	deposit, err := h.service.Create(r.Context(), Input{
		Date:             form.Date,
		OwnerKind:        OwnerKind(form.OwnerKind),
		OwnerID:          form.OwnerID,
		OwnerName:        form.OwnerName,
		AccountID:        form.AccountID,
		CounterAccountID: form.CounterAccountID,
		Amount:           form.Amount,
		Note:             form.Note,
	}, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, deposit)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	deposit, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	logs, err := h.service.Logs(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	ok2, expected, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consistent": ok2, "expected_remaining": expected})
}

func (h *Handler) use(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form amountForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	deposit, err := h.service.Use(r.Context(), id, form.Amount, form.Note, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

func (h *Handler) returnFunds(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form amountForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	deposit, err := h.service.ReturnFunds(r.Context(), id, form.Amount, form.Note, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form noteForm
	_ = httpx.DecodeJSON(r, &form)
	if err := h.service.Cancel(r.Context(), id, form.Note, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusClosed)})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid deposit id")
		return uuid.Nil, false
	}
	return id, true
}
