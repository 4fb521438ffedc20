package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the chart of accounts.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
}

type accountForm struct {
	Code           string `json:"code" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Type           string `json:"type" validate:"required"`
	NormalBalance  string `json:"normal_balance" validate:"required,oneof=DEBIT CREDIT"`
	ParentID       int64  `json:"parent_id"`
	OpeningBalance string `json:"opening_balance"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid account id")
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form accountForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account := Account{
		Code:          form.Code,
		Name:          form.Name,
		Type:          AccountType(form.Type),
		NormalBalance: NormalBalance(form.NormalBalance),
	}
	if form.ParentID != 0 {
		account.ParentID = &form.ParentID
	}
	if form.OpeningBalance != "" {
		balance, err := decimal.NewFromString(form.OpeningBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid opening balance")
			return
		}
		account.OpeningBalance = balance
	}
	created, err := h.service.Create(r.Context(), account)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}
