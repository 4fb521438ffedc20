package assets

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

// Handler wires HTTP endpoints for fixed assets and depreciation.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers asset routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/acquisition", h.postAcquisition)
	r.Get("/{id}/depreciations", h.entries)
	r.Post("/{id}/depreciations", h.addEntry)
	r.Post("/depreciations/{entryID}/reverse", h.reverseEntry)
	r.Post("/depreciations/run", h.runMonthly)
}

type assetForm struct {
	Code             string          `json:"code" validate:"required"`
	Name             string          `json:"name" validate:"required"`
	PurchaseDate     time.Time       `json:"purchase_date" validate:"required"`
	UsageDate        time.Time       `json:"usage_date" validate:"required"`
	PurchaseCost     decimal.Decimal `json:"purchase_cost"`
	SalvageValue     decimal.Decimal `json:"salvage_value"`
	UsefulLifeMonths int             `json:"useful_life_months" validate:"required,gt=0"`
	AssetAccountID   int64           `json:"asset_account_id" validate:"required"`
	ExpenseAccountID int64           `json:"expense_account_id" validate:"required"`
	AccumAccountID   int64           `json:"accum_account_id" validate:"required"`
}

type acquisitionForm struct {
	CreditAccountID int64 `json:"credit_account_id" validate:"required"`
}

type periodForm struct {
	Period time.Time `json:"period" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form assetForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	asset, err := h.service.Create(r.Context(), Input{
		Code:             form.Code,
		Name:             form.Name,
		PurchaseDate:     form.PurchaseDate,
		UsageDate:        form.UsageDate,
		PurchaseCost:     form.PurchaseCost,
		SalvageValue:     form.SalvageValue,
		UsefulLifeMonths: form.UsefulLifeMonths,
		AssetAccountID:   form.AssetAccountID,
		ExpenseAccountID: form.ExpenseAccountID,
		AccumAccountID:   form.AccumAccountID,
	}, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "id")
	if !ok {
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) postAcquisition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "id")
	if !ok {
		return
	}
	var form acquisitionForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	posting, err := h.service.PostAcquisition(r.Context(), id, form.CreditAccountID, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posting)
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.Entries(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) addEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "id")
	if !ok {
		return
	}
	var form periodForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.AddDepreciationEntry(r.Context(), id, form.Period, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "entryID")
	if !ok {
		return
	}
	if err := h.service.ReverseDepreciationEntry(r.Context(), id, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(EntryReversed)})
}

func (h *Handler) runMonthly(w http.ResponseWriter, r *http.Request) {
	var form periodForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.RunMonthly(r.Context(), form.Period, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
