package recon

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nusantara-erp/nusantara-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for bank reconciliation.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers reconciliation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}/uncleared", h.uncleared)
	r.Post("/{id}/clear", h.clear)
	r.Post("/{id}/automatch", h.autoMatch)
	r.Post("/{id}/complete", h.complete)
}

type clearForm struct {
	LineIDs []int64 `json:"line_ids" validate:"required,min=1"`
}

type statementLineForm struct {
	Date      time.Time       `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

type statementForm struct {
	Lines []statementLineForm `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) uncleared(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	lines, err := h.engine.ListUncleared(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form clearForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.engine.MarkCleared(r.Context(), id, form.LineIDs, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) autoMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var form statementForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := httpx.Validate(h.validator, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	statement := make([]StatementLine, 0, len(form.Lines))
	for _, l := range form.Lines {
		statement = append(statement, StatementLine{Date: l.Date, Amount: l.Amount, Reference: l.Reference})
	}
	report, err := h.engine.AutoMatch(r.Context(), id, statement, httpx.Actor(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.engine.Complete(r.Context(), id, httpx.Actor(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusCompleted)})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid reconciliation id")
		return 0, false
	}
	return id, true
}
